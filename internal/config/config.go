package config

import (
	"os"
	"slices"
	"strings"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/metrics"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "SENSORDASH"
	DefaultLogLevel = LogLevelInfo
	DefaultListen   = ":8000"

	configName = "sensordash"
	configType = "toml"

	defaultRenderWidth  = 640
	defaultRenderHeight = 360
)

var configPaths = []string{"/etc/sensordash", "."}

// ServerConfig holds the dashboard HTTP settings.
type ServerConfig struct {
	Listen       string
	RenderWidth  int
	RenderHeight int
}

type Config struct {
	LogLevel LogLevel
	Devices  device.Config
	Variants registry.VariantTable
	Server   ServerConfig
	Metrics  metrics.Config
	Replay   bool

	v        *viper.Viper
	fileUsed string
}

func setDefaults(v *viper.Viper) {
	devices := device.DefaultConfig()
	history := metrics.DefaultConfig()

	v.SetDefault("log_level", string(DefaultLogLevel))

	v.SetDefault("devices.endpoints", devices.Endpoints)
	v.SetDefault("devices.port", devices.Port)
	v.SetDefault("devices.path", devices.Path)
	v.SetDefault("devices.reconnect_delay", devices.ReconnectDelay)
	v.SetDefault("devices.max_retries", devices.MaxRetries)
	v.SetDefault("devices.handshake_timeout", devices.HandshakeTimeout)
	v.SetDefault("devices.read_timeout", devices.ReadTimeout)

	variants := make([]string, 0, len(registry.DefaultVariants()))
	for _, variant := range registry.DefaultVariants() {
		variants = append(variants, string(variant.Primary)+":"+string(variant.Secondary))
	}
	v.SetDefault("chart.variants", variants)

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.render_width", defaultRenderWidth)
	v.SetDefault("server.render_height", defaultRenderHeight)

	v.SetDefault("metrics.enabled", history.Enabled)
	v.SetDefault("metrics.db_path", history.DBPath)
	v.SetDefault("metrics.batch_size", history.BatchSize)
	v.SetDefault("metrics.batch_timeout", history.BatchTimeout)
	v.SetDefault("metrics.replay", true)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.String("config", "", "Path to the TOML configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("listen", DefaultListen, "Dashboard HTTP listen address")
	fs.StringArray("endpoint", nil, "Device endpoint, host or ws:// URL (repeatable)")
	fs.Duration("reconnect-delay", device.DefaultReconnectDelay, "Delay before reconnecting to a device")
	fs.Bool("metrics", false, "Enable telemetry history")

	return fs
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"listen":          "server.listen",
	"endpoint":        "devices.endpoints",
	"reconnect-delay": "devices.reconnect_delay",
	"metrics":         "metrics.enabled",
}

// Load reads configuration from defaults, the TOML file, SENSORDASH_*
// environment variables and command line flags, in increasing precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: EnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	path := o.configPath
	if flagPath, _ := fs.GetString("config"); flagPath != "" {
		path = flagPath
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile reads an explicit path, or searches the default locations.
// Only a missing file in the default locations is tolerated.
func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	variants, err := registry.ParseVariants(v.GetStringSlice("chart.variants"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel: LogLevel(strings.ToLower(v.GetString("log_level"))),
		Devices: device.Config{
			Endpoints:        v.GetStringSlice("devices.endpoints"),
			Port:             v.GetInt("devices.port"),
			Path:             v.GetString("devices.path"),
			ReconnectDelay:   v.GetDuration("devices.reconnect_delay"),
			MaxRetries:       v.GetInt("devices.max_retries"),
			HandshakeTimeout: v.GetDuration("devices.handshake_timeout"),
			ReadTimeout:      v.GetDuration("devices.read_timeout"),
		},
		Variants: variants,
		Server: ServerConfig{
			Listen:       v.GetString("server.listen"),
			RenderWidth:  v.GetInt("server.render_width"),
			RenderHeight: v.GetInt("server.render_height"),
		},
		Metrics: metrics.Config{
			Enabled:      v.GetBool("metrics.enabled"),
			DBPath:       v.GetString("metrics.db_path"),
			BatchSize:    v.GetInt("metrics.batch_size"),
			BatchTimeout: v.GetInt("metrics.batch_timeout"),
		},
		Replay:   v.GetBool("metrics.replay"),
		v:        v,
		fileUsed: v.ConfigFileUsed(),
	}

	// "warn" is accepted as an alias
	if cfg.LogLevel == "warn" {
		cfg.LogLevel = LogLevelWarning
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, struct {
			Value string
		}{string(c.LogLevel)})
	}

	if err := c.Devices.Validate(); err != nil {
		return err
	}

	if len(c.Variants) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "chart.variants must not be empty")
	}

	if c.Server.Listen == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "server.listen must not be empty")
	}
	if c.Server.RenderWidth <= 0 || c.Server.RenderHeight <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Width  int
			Height int
		}{c.Server.RenderWidth, c.Server.RenderHeight})
	}

	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	return nil
}

func (c *Config) GetLogLevel() LogLevel              { return c.LogLevel }
func (c *Config) GetDevices() device.Config          { return c.Devices }
func (c *Config) GetVariants() registry.VariantTable { return c.Variants }
func (c *Config) GetServer() ServerConfig            { return c.Server }
func (c *Config) GetMetrics() metrics.Config         { return c.Metrics }
func (c *Config) IsReplayEnabled() bool              { return c.Replay }
func (c *Config) ConfigFile() string                 { return c.fileUsed }

// RestartRequired lists the sections that differ between two
// configurations and cannot be applied while running.
func RestartRequired(old, updated Provider) []string {
	var keys []string

	if !equalDevices(old.GetDevices(), updated.GetDevices()) {
		keys = append(keys, "devices")
	}
	if !slices.Equal(old.GetVariants(), updated.GetVariants()) {
		keys = append(keys, "chart")
	}
	if old.GetServer() != updated.GetServer() {
		keys = append(keys, "server")
	}
	if old.GetMetrics() != updated.GetMetrics() || old.IsReplayEnabled() != updated.IsReplayEnabled() {
		keys = append(keys, "metrics")
	}

	return keys
}

func equalDevices(a, b device.Config) bool {
	return slices.Equal(a.Endpoints, b.Endpoints) &&
		a.Port == b.Port &&
		a.Path == b.Path &&
		a.ReconnectDelay == b.ReconnectDelay &&
		a.MaxRetries == b.MaxRetries &&
		a.HandshakeTimeout == b.HandshakeTimeout &&
		a.ReadTimeout == b.ReadTimeout
}
