package metrics

import (
	"database/sql"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       received_at INTEGER NOT NULL,
	       observed_at INTEGER,
	       device_id   TEXT NOT NULL,
	       kind        TEXT NOT NULL CHECK (kind IN ('distribution', 'counter', 'unknown')),
	       category    TEXT NOT NULL DEFAULT '',
	       value       REAL NOT NULL DEFAULT 0
	   );
	   CREATE INDEX IF NOT EXISTS samples_series ON samples (device_id, kind, category);`

	insertSampleSQL = `
    INSERT INTO samples (
        received_at, observed_at, device_id, kind, category, value
    ) VALUES (?, ?, ?, ?, ?, ?)`

	recordVersionSQL = `INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	currentVersionSQL = `SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`

	// Latest value per series, ordered by when each series first appeared.
	latestSamplesSQL = `
    SELECT s.received_at, s.observed_at, s.device_id, s.kind, s.category, s.value
    FROM samples s
    JOIN (
        SELECT MIN(id) AS first_id, MAX(id) AS last_id
        FROM samples
        GROUP BY device_id, kind, category
    ) series ON s.id = series.last_id
    ORDER BY series.first_id`
)

// withTx runs fn in a transaction, rolling back unless fn succeeds and the
// commit goes through. Errors are reported under code.
func withTx(db *sql.DB, code errors.ErrorCode, log logger.Logger, fn func(*sql.Tx) error) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(code, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to roll back schema transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(code, err)
	}

	return nil
}

// InitSchema creates the tables and records SchemaVersion.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Str("tables", "schema_versions, samples").Msg("Creating history schema")

	err := withTx(db, ErrSchemaInitFailed, log, func(tx *sql.Tx) error {
		if _, err := tx.Exec(createTablesSQL); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, struct {
				Phase string
				Error string
			}{"create_tables", err.Error()})
		}

		if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, struct {
				Phase string
				Error string
			}{"record_version", err.Error()})
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("version", SchemaVersion).Msg("History schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for a new database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(currentVersionSQL).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{"get_version", err.Error()})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(tableExistsSQL, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Table string
			Error string
		}{tableName, err.Error()})
	}

	return exists, nil
}
