package config

import (
	"os"
	"time"

	"github.com/openvol/xleases/util"
)

func (cfg *Config) Normalize() {
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}

	// volume I/O
	if cfg.IOWorkers < 0 {
		cfg.IOWorkers = 0
	}
	if cfg.IOTimeoutMS <= 0 {
		cfg.IOTimeoutMS = 30000
	}
	if cfg.VolumeSize <= 0 {
		cfg.VolumeSize = 1 << 30
	}
}

// IOTimeout is the pooled I/O operation timeout as a duration.
func (cfg *Config) IOTimeout() time.Duration {
	return time.Duration(cfg.IOTimeoutMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	overrideEnvBool(&cfg.EnableExporter, "XLEASES_ENABLE_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "XLEASES_EXPORTER_PORT")
	overrideEnvBool(&cfg.DirectIO, "XLEASES_DIRECT_IO")
	overrideEnvInt(&cfg.IOWorkers, "XLEASES_IO_WORKERS")
	overrideEnvInt(&cfg.IOTimeoutMS, "XLEASES_IO_TIMEOUT_MS")
	overrideEnvSize(&cfg.VolumeSize, "XLEASES_VOLUME_SIZE")
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvSize(target *int64, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseSize(v, *target)
	}
}
