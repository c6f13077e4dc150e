package config

import "time"

const (
	defaultKeepAliveInterval = 30 * time.Second
	defaultMaxConnectionNum  = 50
	defaultBorderAgentPort   = 49191
	defaultShutdownTimeout   = 10 * time.Second
	defaultMetricsPort       = 9090
)

// ApplyDefaults fills zero-valued fields with their defaults. Called after
// unmarshalling so a partial config file only overrides what it names.
func ApplyDefaults(cfg *Config) {
	if cfg.Commissioner.KeepAliveInterval == 0 {
		cfg.Commissioner.KeepAliveInterval = defaultKeepAliveInterval
	}
	if cfg.Commissioner.MaxConnectionNum == 0 {
		cfg.Commissioner.MaxConnectionNum = defaultMaxConnectionNum
	}
	if cfg.BorderAgent.Port == 0 {
		cfg.BorderAgent.Port = defaultBorderAgentPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "otcommissioner"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.Profiling.ServiceName == "" {
		cfg.Profiling.ServiceName = "otcommissioner"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_space"}
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = defaultMetricsPort
	}
}

// GetDefaultConfig returns a Config populated entirely with defaults, used
// when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
