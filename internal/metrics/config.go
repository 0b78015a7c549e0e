package metrics

import (
	"path/filepath"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/sensordash/history.db"
	defaultBatchSize    = 50
	defaultBatchTimeout = 5
)

type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Enabled:      false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate storage settings if history is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch_size must be >= 1 and batch_timeout >= 0")
	}

	return nil
}

func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
