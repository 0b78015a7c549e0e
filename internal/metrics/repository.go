package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*Sample
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	// sqlite allows one writer; keep a single connection
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, cfg, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("History repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*Sample, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	// Periodic flushing only when a timeout is configured
	if cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, sample)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Latest(ctx context.Context) ([]Sample, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, latestSamplesSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			s          Sample
			receivedAt int64
			observedAt sql.NullInt64
		)
		if err := rows.Scan(&receivedAt, &observedAt, &s.DeviceID, &s.Kind, &s.Category, &s.Value); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		s.ReceivedAt = time.UnixMilli(receivedAt)
		if observedAt.Valid {
			s.ObservedAt = time.Unix(observedAt.Int64, 0)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return samples, nil
}

func (r *repository) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		close(r.shutdownChan)
		if r.flushTicker != nil {
			r.flushTicker.Stop()
		}

		// Wait for the flusher to finish its final flush
		<-r.flushDoneChan

		r.mu.Lock()
		err := r.flush()
		r.mu.Unlock()
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to flush history on close")
		}

		if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "checkpoint_wal",
				Error: err.Error(),
			})
			r.db.Close()
			return
		}

		if err := r.db.Close(); err != nil {
			closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "close_database",
				Error: err.Error(),
			})
			return
		}

		r.logger.Info().Msg("History repository closed gracefully")
	})

	return closeErr
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Periodic history flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, sample := range r.buffer {
		var observed any
		if !sample.ObservedAt.IsZero() {
			observed = sample.ObservedAt.Unix()
		}

		if _, err := stmt.Exec(
			sample.ReceivedAt.UnixMilli(),
			observed,
			sample.DeviceID,
			sample.Kind,
			sample.Category,
			sample.Value,
		); err != nil {
			r.logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed history to database")
	r.buffer = r.buffer[:0]

	return nil
}
