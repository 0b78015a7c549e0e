package metrics

import "github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("history_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("history_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("history_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("history_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("history_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("history_storage_access_failed")
	ErrStorageInit   = errors.ErrInitMetrics
	ErrStorageClose  = errors.ErrCloseMetrics

	// Recording Errors
	ErrRecordFailed  = errors.ErrorCode("history_record_failed")
	ErrInvalidSample = errors.ErrorCode("history_invalid_sample")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
