package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/config"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/metrics"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/pid"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/router"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/server"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Init(cfg.LogLevel.String(), logger.IsService())
	logger.Debug().Str("config_file", cfg.ConfigFile()).Msg("Config loaded")

	pidFile := pid.New("")
	if err := pidFile.Write(); err != nil {
		logError(err, "Failed to write pid file")
		return 1
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logError(err, "Error in main loop")
		return 1
	}

	logger.Info().Msg("Exiting...")

	return 0
}

func run(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()

	history, err := metrics.NewService(cfg.Metrics, logger.Component("history"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			logError(err, "Failed to close telemetry history")
		}
	}()

	hub := server.NewHub(nil)
	reg := registry.New(cfg.Variants, registry.WithOnCreate(hub.Attach))
	rt := router.New(reg, router.WithRecorder(history))

	if cfg.Metrics.Enabled && cfg.Replay {
		replay(ctx, history, rt, reg)
	}

	mgr := device.NewManager(cfg.Devices, rt)
	srv := server.New(cfg.Server, reg, hub, mgr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info().
		Strs("endpoints", cfg.Devices.URLs()).
		Str("listen", cfg.Server.Listen).
		Bool("history", cfg.Metrics.Enabled).
		Msg("Starting sensor dashboard")

	var (
		wg      sync.WaitGroup
		fatal   error
		fatalMu sync.Mutex
	)
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			fatalMu.Lock()
			fatal = err
			fatalMu.Unlock()
			cancel()
		}
	}()

	go func() {
		defer wg.Done()
		// The dashboard keeps serving the last known charts after every
		// device has been given up on.
		if err := mgr.Run(ctx); err != nil {
			logError(err, "Stopped connecting to devices")
		}
	}()

	go func() {
		defer wg.Done()
		if err := cfg.Watch(ctx, onConfigChange(cfg)); err != nil {
			logger.Warn().Err(err).Msg("Configuration hot reload unavailable")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")
	wg.Wait()

	return fatal
}

func replay(ctx context.Context, history metrics.Recorder, rt *router.Router, reg *registry.Registry) {
	samples, err := history.Latest(ctx)
	if err != nil {
		logError(err, "Failed to read telemetry history, starting with empty charts")
		return
	}

	n := rt.Replay(ctx, samples)
	logger.Info().
		Int("samples", n).
		Int("devices", reg.Len()).
		Msg("Charts restored from history")
}

// onConfigChange applies a new log level immediately. Everything else is
// read once at startup.
func onConfigChange(running config.Provider) func(config.Provider) {
	level := running.GetLogLevel()

	return func(updated config.Provider) {
		if updated.GetLogLevel() != level {
			level = updated.GetLogLevel()
			logger.SetLogLevel(logger.ParseLevel(level.String()))
			logger.Info().Str("log_level", level.String()).Msg("Log level changed")
		}

		if sections := config.RestartRequired(running, updated); len(sections) > 0 {
			logger.Warn().Strs("sections", sections).Msg("Configuration changed, restart required to apply")
		}
	}
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
