package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/slicestore/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "slicestore.json"

	// DefaultPort is the default inspector port.
	DefaultPort = 7070

	// DefaultHost is the default inspector host.
	DefaultHost = "localhost"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "slicestore"

	// DefaultServiceName is the default OpenTelemetry service name.
	DefaultServiceName = "slicestore"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"
)

// Config represents the complete slicestore.json configuration.
//
// Every field can be overridden from the environment; see the env tags.
type Config struct {
	// Inspector contains the HTTP inspector configuration.
	Inspector InspectorConfig `json:"inspector"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// InspectorConfig contains inspector server settings.
type InspectorConfig struct {
	// Enabled starts the inspector with serve.
	Enabled bool `json:"enabled" env:"SLICESTORE_INSPECTOR_ENABLED"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" env:"SLICESTORE_INSPECTOR_HOST"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" env:"SLICESTORE_INSPECTOR_PORT"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled attaches the metrics observer to the store.
	Enabled bool `json:"enabled" env:"SLICESTORE_METRICS_ENABLED"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty" env:"SLICESTORE_METRICS_NAMESPACE"`

	// Subsystem is the metrics subsystem.
	Subsystem string `json:"subsystem,omitempty" env:"SLICESTORE_METRICS_SUBSYSTEM"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP endpoint URL. Tracing is off when empty.
	Endpoint string `json:"endpoint,omitempty" env:"SLICESTORE_TRACING_ENDPOINT"`

	// ServiceName is the service.name resource attribute.
	ServiceName string `json:"serviceName,omitempty" env:"SLICESTORE_TRACING_SERVICE_NAME"`

	// IncludeFields records written field names on set spans.
	IncludeFields bool `json:"includeFields,omitempty" env:"SLICESTORE_TRACING_INCLUDE_FIELDS"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"SLICESTORE_LOG_LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"SLICESTORE_LOG_FORMAT"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Inspector: InspectorConfig{
			Enabled: true,
			Host:    DefaultHost,
			Port:    DefaultPort,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			ServiceName: DefaultServiceName,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for slicestore.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found at " + path)
		}
		return nil, errors.FromError(err, errors.CodeConfigInvalid)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve returns the configuration to run with. An explicit path must
// exist. Without one, slicestore.json in dir is used when present and the
// defaults otherwise. Environment overrides apply in every case.
func Resolve(path, dir string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if Exists(dir) {
		return Load(dir)
	}

	cfg := New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SLICESTORE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse environment: " + err.Error()).
			Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.FromError(err, errors.CodeConfigInvalid)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FromError(err, errors.CodeConfigInvalid)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Inspector.Host == "" {
		c.Inspector.Host = DefaultHost
	}
	if c.Inspector.Port == 0 {
		c.Inspector.Port = DefaultPort
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Inspector.Port < 0 || c.Inspector.Port > 65535 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("inspector.port must be between 0 and 65535")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("log.level must be one of debug, info, warn, error; got " + strconv.Quote(c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("log.format must be text or json; got " + strconv.Quote(c.Log.Format))
	}
	return nil
}

// InspectorAddress returns the inspector listen address.
func (c *Config) InspectorAddress() string {
	return c.Inspector.Host + ":" + strconv.Itoa(c.Inspector.Port)
}

// LogLevel returns Log.Level as a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
