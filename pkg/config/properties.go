package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/openvol/xleases/util"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the lease index tools.
type Config struct {
	// Observability
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`

	// Volume I/O
	DirectIO    bool  `yaml:"direct_io" json:"direct.io"`
	IOWorkers   int   `yaml:"io_workers" json:"io.workers"`
	IOTimeoutMS int   `yaml:"io_timeout_ms" json:"io.timeout.ms"`
	VolumeSize  int64 `yaml:"volume_size" json:"volume.size"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	exporterStr := flag.String("exporter", "false", "Enable Prometheus exporter")
	exporterPortStr := flag.String("exporter-port", "9100", "Exporter port")
	logLevelStr := flag.String("log-level", "info", "Log Level (debug, info, warn, error)")

	directStr := flag.String("direct", "true", "Access volumes with O_DIRECT")
	ioWorkersStr := flag.String("io-workers", "0", "I/O worker goroutines (0=run I/O inline)")
	ioTimeoutStr := flag.String("io-timeout", "30000", "I/O operation timeout in milliseconds (pooled I/O only)")
	volumeSizeStr := flag.String("volume-size", "1g", "Volume size for create (accepts k/m/g suffix)")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flag.Parse()

	applyDefaults(cfg, exporterStr, exporterPortStr, logLevelStr,
		directStr, ioWorkersStr, ioTimeoutStr, volumeSizeStr)

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)

	applyExplicitFlags(cfg, exporterStr, exporterPortStr, logLevelStr,
		directStr, ioWorkersStr, ioTimeoutStr, volumeSizeStr)

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	return cfg, nil
}

func applyDefaults(cfg *Config, exporterStr, exporterPortStr, logLevelStr,
	directStr, ioWorkersStr, ioTimeoutStr, volumeSizeStr *string) {

	if exporter, err := strconv.ParseBool(*exporterStr); err == nil {
		cfg.EnableExporter = exporter
	}
	if exporterPort, err := strconv.Atoi(*exporterPortStr); err == nil {
		cfg.ExporterPort = exporterPort
	}

	switch strings.ToLower(*logLevelStr) {
	case "debug":
		cfg.LogLevel = util.LogLevelDebug
	case "info":
		cfg.LogLevel = util.LogLevelInfo
	case "warn", "warning":
		cfg.LogLevel = util.LogLevelWarn
	case "error":
		cfg.LogLevel = util.LogLevelError
	default:
		cfg.LogLevel = util.LogLevelInfo
	}

	if direct, err := strconv.ParseBool(*directStr); err == nil {
		cfg.DirectIO = direct
	}
	if ioWorkers, err := strconv.Atoi(*ioWorkersStr); err == nil {
		cfg.IOWorkers = ioWorkers
	}
	if ioTimeout, err := strconv.Atoi(*ioTimeoutStr); err == nil {
		cfg.IOTimeoutMS = ioTimeout
	}
	cfg.VolumeSize = util.ParseSize(*volumeSizeStr, 1<<30)
}

func applyExplicitFlags(cfg *Config, exporterStr, exporterPortStr, logLevelStr,
	directStr, ioWorkersStr, ioTimeoutStr, volumeSizeStr *string) {

	if *exporterStr != "false" {
		if exporter, err := strconv.ParseBool(*exporterStr); err == nil {
			cfg.EnableExporter = exporter
		}
	}
	if *exporterPortStr != "9100" {
		if exporterPort, err := strconv.Atoi(*exporterPortStr); err == nil {
			cfg.ExporterPort = exporterPort
		}
	}
	if *logLevelStr != "info" {
		switch strings.ToLower(*logLevelStr) {
		case "debug":
			cfg.LogLevel = util.LogLevelDebug
		case "info":
			cfg.LogLevel = util.LogLevelInfo
		case "warn", "warning":
			cfg.LogLevel = util.LogLevelWarn
		case "error":
			cfg.LogLevel = util.LogLevelError
		default:
			cfg.LogLevel = util.LogLevelInfo
		}
	}
	if *directStr != "true" {
		if direct, err := strconv.ParseBool(*directStr); err == nil {
			cfg.DirectIO = direct
		}
	}
	if *ioWorkersStr != "0" {
		if ioWorkers, err := strconv.Atoi(*ioWorkersStr); err == nil {
			cfg.IOWorkers = ioWorkers
		}
	}
	if *ioTimeoutStr != "30000" {
		if ioTimeout, err := strconv.Atoi(*ioTimeoutStr); err == nil {
			cfg.IOTimeoutMS = ioTimeout
		}
	}
	if *volumeSizeStr != "1g" {
		cfg.VolumeSize = util.ParseSize(*volumeSizeStr, cfg.VolumeSize)
	}
}
