package config_test

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openvol/xleases/pkg/config"
	"github.com/openvol/xleases/util"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()

	if cfg.ExporterPort != 9100 {
		t.Errorf("ExporterPort default incorrect: %d", cfg.ExporterPort)
	}
	if cfg.IOWorkers != 0 {
		t.Errorf("IOWorkers default incorrect: %d", cfg.IOWorkers)
	}
	if cfg.IOTimeoutMS != 30000 {
		t.Errorf("IOTimeoutMS default incorrect: %d", cfg.IOTimeoutMS)
	}
	if cfg.VolumeSize != 1<<30 {
		t.Errorf("VolumeSize default incorrect: %d", cfg.VolumeSize)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := &config.Config{
		ExporterPort: 9200,
		IOWorkers:    4,
		IOTimeoutMS:  5000,
		VolumeSize:   2 << 30,
	}
	cfg.Normalize()

	if cfg.ExporterPort != 9200 || cfg.IOWorkers != 4 || cfg.IOTimeoutMS != 5000 || cfg.VolumeSize != 2<<30 {
		t.Errorf("Normalize clobbered explicit values: %+v", cfg)
	}
}

func TestNormalizeNegativeWorkers(t *testing.T) {
	cfg := &config.Config{IOWorkers: -3}
	cfg.Normalize()

	if cfg.IOWorkers != 0 {
		t.Errorf("IOWorkers normalization failed: %d", cfg.IOWorkers)
	}
}

func TestIOTimeout(t *testing.T) {
	cfg := &config.Config{IOTimeoutMS: 1500}
	if cfg.IOTimeout() != 1500*time.Millisecond {
		t.Errorf("IOTimeout incorrect: %v", cfg.IOTimeout())
	}
}

func TestConfigYAML(t *testing.T) {
	data := []byte(`
log_level: debug
enable_exporter: true
exporter_port: 9200
direct_io: false
io_workers: 2
io_timeout_ms: 10000
volume_size: 2147483648
`)
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if cfg.LogLevel != util.LogLevelDebug {
		t.Errorf("LogLevel incorrect: %v", cfg.LogLevel)
	}
	if !cfg.EnableExporter || cfg.ExporterPort != 9200 {
		t.Errorf("exporter settings incorrect: %+v", cfg)
	}
	if cfg.DirectIO {
		t.Errorf("DirectIO should be false")
	}
	if cfg.IOWorkers != 2 || cfg.IOTimeoutMS != 10000 {
		t.Errorf("I/O settings incorrect: %+v", cfg)
	}
	if cfg.VolumeSize != 2<<30 {
		t.Errorf("VolumeSize incorrect: %d", cfg.VolumeSize)
	}
}
