package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Device errors
	ErrDecodeFrame       ErrorCode = "decode_frame_failed"
	ErrTransport         ErrorCode = "transport_failed"
	ErrUnrecognizedShape ErrorCode = "unrecognized_shape"
	ErrRetriesExhausted  ErrorCode = "retries_exhausted"

	// Chart errors
	ErrInvalidChartKind ErrorCode = "invalid_chart_kind"
	ErrRenderChart      ErrorCode = "render_chart_failed"

	// Application errors
	ErrMainLoop     ErrorCode = "main_loop_failed"
	ErrServeHTTP    ErrorCode = "serve_http_failed"
	ErrTimeout      ErrorCode = "operation_timeout"
	ErrNotFound     ErrorCode = "resource_not_found"
	ErrInitMetrics  ErrorCode = "init_metrics_failed"
	ErrCloseMetrics ErrorCode = "close_metrics_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrDecodeFrame:       "Failed to decode frame",
	ErrTransport:         "Transport failure",
	ErrUnrecognizedShape: "Unrecognized telemetry shape",
	ErrRetriesExhausted:  "Reconnect retries exhausted",
	ErrInvalidChartKind:  "Invalid chart kind",
	ErrRenderChart:       "Failed to render chart",
	ErrMainLoop:          "Error in main loop",
	ErrServeHTTP:         "HTTP server failed",
	ErrTimeout:           "Operation timed out",
	ErrNotFound:          "Resource not found",
	ErrInitMetrics:       "Failed to initialize metrics",
	ErrCloseMetrics:      "Failed to close metrics",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
