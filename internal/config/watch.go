package config

import (
	"context"
	"path/filepath"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the configuration file whenever it is written or replaced
// and passes the result to callback. Invalid files are logged and skipped.
// Without a configuration file Watch returns immediately.
func (c *Config) Watch(ctx context.Context, callback func(Provider)) error {
	errFactory := errors.New()

	if c.fileUsed == "" {
		logger.Debug().Msg("No configuration file in use, not watching")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	defer watcher.Close()

	file := filepath.Clean(c.fileUsed)

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	logger.Debug().Str("path", file).Msg("Watching configuration file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			updated, err := c.reload()
			if err != nil {
				logger.Warn().Err(err).Str("path", file).Msg("Ignoring invalid configuration change")
				continue
			}
			callback(updated)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Configuration watcher error")
		}
	}
}

func (c *Config) reload() (*Config, error) {
	errFactory := errors.New()

	if err := c.v.ReadInConfig(); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	updated, err := fromViper(c.v)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	return updated, nil
}
