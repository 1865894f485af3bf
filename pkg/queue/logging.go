package queue

import (
	"github.com/rs/zerolog"
)

// Level is a log severity.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	// LevelAlert marks failures that need immediate operator action, such as an invoice that
	// could not be delivered.
	LevelAlert Level = "alert"
)

// Logger is the logging sink used by Client. fields always contains "queue_name".
type Logger interface {
	Log(level Level, msg string, fields map[string]any)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(level Level, msg string, fields map[string]any)

// Log calls f.
func (f LoggerFunc) Log(level Level, msg string, fields map[string]any) {
	f(level, msg, fields)
}

type zerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger returns a Logger that writes to log. Alert entries are written at error level
// with a "severity" field of "ALERT".
func NewZerologLogger(log zerolog.Logger) Logger {
	return &zerologLogger{log: log}
}

func (z *zerologLogger) Log(level Level, msg string, fields map[string]any) {
	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = z.log.Debug()
	case LevelInfo:
		event = z.log.Info()
	case LevelWarning:
		event = z.log.Warn()
	case LevelAlert:
		event = z.log.Error().Str("severity", "ALERT")
	default:
		event = z.log.Error()
	}
	event.Fields(fields).Msg(msg)
}
