package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/chart"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/config"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sensordash.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[devices]
endpoints = ["10.0.0.1", "ws://10.0.0.2:81/stream"]
port = 81
path = "/ws"
reconnect_delay = "3s"
max_retries = 4
handshake_timeout = "1s"
read_timeout = "45s"

[chart]
variants = ["line:bar", "pie:doughnut"]

[server]
listen = "127.0.0.1:9000"
render_width = 800
render_height = 400

[metrics]
enabled = true
db_path = "/tmp/history.db"
batch_size = 10
batch_timeout = 2
replay = false
`)
	t.Setenv("SENSORDASH_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, path, cfg.ConfigFile())

	assert.Equal(t, []string{"10.0.0.1", "ws://10.0.0.2:81/stream"}, cfg.Devices.Endpoints)
	assert.Equal(t, 81, cfg.Devices.Port)
	assert.Equal(t, "/ws", cfg.Devices.Path)
	assert.Equal(t, 3*time.Second, cfg.Devices.ReconnectDelay)
	assert.Equal(t, 4, cfg.Devices.MaxRetries)
	assert.Equal(t, time.Second, cfg.Devices.HandshakeTimeout)
	assert.Equal(t, 45*time.Second, cfg.Devices.ReadTimeout)
	assert.Equal(t, []string{"ws://10.0.0.1:81/ws", "ws://10.0.0.2:81/stream"}, cfg.Devices.URLs())

	assert.Equal(t, registry.VariantTable{
		{Primary: chart.KindLine, Secondary: chart.KindBar},
		{Primary: chart.KindPie, Secondary: chart.KindDoughnut},
	}, cfg.Variants)

	assert.Equal(t, config.ServerConfig{Listen: "127.0.0.1:9000", RenderWidth: 800, RenderHeight: 400}, cfg.Server)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.Metrics.DBPath)
	assert.Equal(t, 10, cfg.Metrics.BatchSize)
	assert.Equal(t, 2, cfg.Metrics.BatchTimeout)
	assert.False(t, cfg.IsReplayEnabled())
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("SENSORDASH_CONFIG", "")

	cfg, err := config.Load(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, device.DefaultConfig(), cfg.Devices)
	assert.Equal(t, []string{
		"ws://10.110.22.14:8080/",
		"ws://10.110.22.5:8080/",
		"ws://10.110.22.7:8080/",
	}, cfg.Devices.URLs())
	assert.Equal(t, registry.DefaultVariants(), cfg.Variants)
	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.Equal(t, 640, cfg.Server.RenderWidth)
	assert.Equal(t, 360, cfg.Server.RenderHeight)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Replay)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", writeConfig(t, `
This is not a valid TOML file
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	_, err := config.Load(nil, config.WithConfigFile(missing))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", writeConfig(t, `
log_level = "invalid"
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidVariant(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", writeConfig(t, `
[chart]
variants = ["bar:radar"]
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", writeConfig(t, `
log_level = "error"

[server]
listen = ":7000"
`))
	t.Setenv("SENSORDASH_SERVER_LISTEN", ":7500")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":7500", cfg.Server.Listen, "env overrides file")
	assert.Equal(t, config.LogLevelError, cfg.LogLevel)

	cfg, err = config.Load([]string{
		"--log-level", "debug",
		"--listen", ":9100",
		"--endpoint", "192.168.1.66",
		"--endpoint", "ws://192.168.1.67:81",
		"--reconnect-delay", "500ms",
		"--metrics",
	})
	require.NoError(t, err)

	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.Server.Listen)
	assert.Equal(t, []string{"192.168.1.66", "ws://192.168.1.67:81"}, cfg.Devices.Endpoints)
	assert.Equal(t, 500*time.Millisecond, cfg.Devices.ReconnectDelay)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestConfigFlag(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", "")
	path := writeConfig(t, `log_level = "warning"`)

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelWarning, cfg.LogLevel)
}

func TestUnknownFlag(t *testing.T) {
	_, err := config.Load([]string{"--interval", "2"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestRestartRequired(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", "")

	old, err := config.Load(nil)
	require.NoError(t, err)

	same, err := config.Load([]string{"--log-level", "debug"})
	require.NoError(t, err)
	assert.Empty(t, config.RestartRequired(old, same))

	changed, err := config.Load([]string{"--listen", ":9999", "--endpoint", "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"devices", "server"}, config.RestartRequired(old, changed))

	t.Setenv("SENSORDASH_DEVICES_READ_TIMEOUT", "30s")
	keepAlive, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"devices"}, config.RestartRequired(old, keepAlive))
}

func TestWatchAppliesChanges(t *testing.T) {
	path := writeConfig(t, `log_level = "info"`)
	t.Setenv("SENSORDASH_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan config.Provider, 16)
	done := make(chan error, 1)
	go func() {
		done <- cfg.Watch(ctx, func(p config.Provider) { updates <- p })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-updates:
			if p.GetLogLevel() == config.LogLevelDebug {
				cancel()
				require.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("no configuration update received")
		}
	}
}

func TestWatchWithoutFile(t *testing.T) {
	t.Setenv("SENSORDASH_CONFIG", "")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	require.Empty(t, cfg.ConfigFile())

	assert.NoError(t, cfg.Watch(context.Background(), func(config.Provider) {}))
}

func TestLogLevelIsValid(t *testing.T) {
	assert.True(t, config.LogLevelDebug.IsValid())
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("verbose").IsValid())
}
