package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/rs/zerolog"
)

// log stays silent until Init is called.
var log = zerolog.New(io.Discard)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// LogEvent is a pending log line; finish it with Msg.
type LogEvent struct {
	*zerolog.Event
}

// Init writes human readable lines to stdout. Under a service manager the
// journal already timestamps every line, so timestamps are dropped.
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.FormatTimestamp = func(interface{}) string {
			return ""
		}
	}

	InitWithWriter(output, level)
}

// InitWithWriter logs JSON lines to w, or through w when it is a
// zerolog.ConsoleWriter.
func InitWithWriter(w io.Writer, level string) {
	log = zerolog.New(w).With().Timestamp().Logger()
	SetLogLevel(ParseLevel(level))
}

// ParseLevel maps a configured level name to a LogLevel. Unknown names map
// to InfoLevel; config validates names before they get here.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel changes the level for every logger, including ones already
// handed out by Default and Component.
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService reports whether the process looks like it runs under systemd or
// another service manager.
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func Debug() *LogEvent { return &LogEvent{log.Debug()} }
func Info() *LogEvent  { return &LogEvent{log.Info()} }
func Warn() *LogEvent  { return &LogEvent{log.Warn()} }
func Error() *LogEvent { return &LogEvent{log.Error()} }

// ErrorWithCode starts an error line carrying err's code and cause.
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(log.Error(), err)
}

// WarnWithCode starts a warning line carrying err's code and cause.
func WarnWithCode(err errors.Error) *LogEvent {
	return withCode(log.Warn(), err)
}

func withCode(e *zerolog.Event, err errors.Error) *LogEvent {
	e = e.Str("error_code", err.Code().String()).Str("error_message", err.Error())
	if cause := err.Unwrap(); cause != nil {
		e = e.AnErr("error", cause)
	}

	return &LogEvent{e}
}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return Component("")
}

// Component returns a Logger that tags every line with component=name.
func Component(name string) Logger {
	return component(name)
}

type component string

func (c component) tag(e *zerolog.Event) *zerolog.Event {
	if c == "" {
		return e
	}

	return e.Str("component", string(c))
}

func (c component) Debug() *LogEvent { return &LogEvent{c.tag(log.Debug())} }
func (c component) Info() *LogEvent  { return &LogEvent{c.tag(log.Info())} }
func (c component) Warn() *LogEvent  { return &LogEvent{c.tag(log.Warn())} }
func (c component) Error() *LogEvent { return &LogEvent{c.tag(log.Error())} }

func (c component) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(c.tag(log.Error()), err)
}

func (c component) WarnWithCode(err errors.Error) *LogEvent {
	return withCode(c.tag(log.Warn()), err)
}
