// Package config loads the otcommissioner static configuration: connection
// parameters for Petition/Connect, the ambient logging/telemetry/metrics
// stack, and the credential material (PSKc or CCM certificate/trust anchor)
// the secure session needs before a border agent handshake can start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level otcommissioner configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (OTCOMMISSIONER_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Commissioner holds the petition identity, CCM mode switch, and the
	// keep-alive/connection-limit knobs spec.md §6 names.
	Commissioner CommissionerConfig `mapstructure:"commissioner" yaml:"commissioner"`

	// BorderAgent is the address the commissioner dials on Connect.
	BorderAgent BorderAgentConfig `mapstructure:"border_agent" yaml:"border_agent"`

	// Credentials locates the PSKc/certificate/trust-anchor material on disk.
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Profiling controls Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds how long Disconnect/resign is given to complete
	// during a graceful CLI shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// CommissionerConfig mirrors internal/commissioner.Config's field set, minus
// the already-parsed credential material (see CredentialsConfig).
type CommissionerConfig struct {
	// ID identifies this commissioner to the border agent (1..64 bytes).
	ID string `mapstructure:"id" validate:"required,max=64" yaml:"id"`

	// EnableCCM selects certificate/domain authentication over PSKc.
	EnableCCM bool `mapstructure:"enable_ccm" yaml:"enable_ccm"`

	// DomainName is required when EnableCCM is set (1..16 bytes).
	DomainName string `mapstructure:"domain_name" validate:"required_if=EnableCCM true,omitempty,max=16" yaml:"domain_name,omitempty"`

	// KeepAliveInterval must fall within [30s, 45s]; zero fills the minimum.
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" validate:"omitempty,min=30000000000,max=45000000000" yaml:"keep_alive_interval"`

	// MaxConnectionNum bounds the joiner-proxy's concurrent joiner sessions.
	MaxConnectionNum int `mapstructure:"max_connection_num" validate:"omitempty,gt=0" yaml:"max_connection_num"`

	// ProxyMode runs the joiner subsystem without a local PSKd-authenticated
	// DTLS server, handing raw relay payloads to an external commissioning
	// party instead.
	ProxyMode bool `mapstructure:"proxy_mode" yaml:"proxy_mode"`

	// EnableDTLSDebugLogging raises the DTLS session's logger to debug level.
	EnableDTLSDebugLogging bool `mapstructure:"enable_dtls_debug_logging" yaml:"enable_dtls_debug_logging"`
}

// BorderAgentConfig is the dial target for Connect.
type BorderAgentConfig struct {
	Address string `mapstructure:"address" validate:"required" yaml:"address"`
	Port    uint16 `mapstructure:"port" validate:"required" yaml:"port"`
}

// CredentialsConfig locates the key material Connect needs. Exactly one of
// PSKcHex/PSKcFile (non-CCM) or CertFile+KeyFile+TrustAnchorFiles (CCM) is
// expected to resolve, matching EnableCCM.
type CredentialsConfig struct {
	// PSKcHex is a 32-character hex-encoded 16-byte PSKc, for configs that
	// prefer not to reference a separate file.
	PSKcHex string `mapstructure:"pskc_hex" validate:"omitempty,len=32,hexadecimal" yaml:"pskc_hex,omitempty"`

	// PSKcFile is a path to a file containing the raw 16-byte PSKc.
	PSKcFile string `mapstructure:"pskc_file" yaml:"pskc_file,omitempty"`

	// CertFile/KeyFile are the CCM-mode client certificate and private key,
	// PEM-encoded.
	CertFile string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file,omitempty"`

	// TrustAnchorFiles lists PEM files, each containing one or more domain
	// CA certificates trusted for the CCM handshake.
	TrustAnchorFiles []string `mapstructure:"trust_anchor_files" yaml:"trust_anchor_files,omitempty"`

	// CommissionerTokenFile optionally points at an externally-obtained
	// COM_TOK to present instead of requesting a fresh one.
	CommissionerTokenFile string `mapstructure:"commissioner_token_file" yaml:"commissioner_token_file,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure       bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"omitempty,min=0,max=1" yaml:"sample_rate"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string   `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string   `mapstructure:"service_version" yaml:"service_version"`
	Endpoint       string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes   []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig contains Prometheus metrics server configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults. When no
// config file is found it returns GetDefaultConfig() and does not read
// environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning an actionable error when the
// default config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  otcommissioner config init\n\n"+
				"Or specify a custom config file:\n"+
				"  otcommissioner <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("OTCOMMISSIONER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files use human-readable durations like
// "30s"/"5m" wherever a time.Duration field appears.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "otcommissioner")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "otcommissioner")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
