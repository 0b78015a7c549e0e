package logger

import "github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
	WarnWithCode(err errors.Error) *LogEvent
}
