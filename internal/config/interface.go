package config

import (
	"context"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/metrics"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
)

// Provider defines the interface for accessing configuration values.
// Values are immutable after loading; Watch delivers a fresh Provider on
// every change.
type Provider interface {
	// GetLogLevel returns the configured logging level
	GetLogLevel() LogLevel

	// GetDevices returns the device list and reconnect policy
	GetDevices() device.Config

	// GetVariants returns the chart variant table
	GetVariants() registry.VariantTable

	// GetServer returns the dashboard HTTP settings
	GetServer() ServerConfig

	// GetMetrics returns the telemetry history settings
	GetMetrics() metrics.Config

	// IsReplayEnabled returns whether charts are rebuilt from history at startup
	IsReplayEnabled() bool

	// ConfigFile returns the path of the file that was read, or "" if none
	ConfigFile() string
}

// Watcher enables live configuration updates
type Watcher interface {
	// Watch blocks until ctx is done, calling callback after every change
	// to the configuration file
	Watch(ctx context.Context, callback func(Provider)) error
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "SENSORDASH"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
