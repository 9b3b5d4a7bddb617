package log

import (
	"context"

	"github.com/inconshreveable/log15"
)

// Log15Logger wraps a log15.Logger to satisfy the Logger interface. It also
// exposes the log15.Logger directly so callers can downcast when they need
// log15-specific features (New, SetHandler, ...).
type Log15Logger struct {
	log15.Logger
}

func NewLog15Logger(l log15.Logger) *Log15Logger {
	return &Log15Logger{l}
}

var _ Logger = &Log15Logger{}

func (l *Log15Logger) Log(_ context.Context, level LogLevel, msg string, data map[string]interface{}) {
	args := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}

	switch level {
	case LogLevelTrace:
		l.Debug(msg, append(args, "log_level", level)...)
	case LogLevelDebug:
		l.Debug(msg, args...)
	case LogLevelInfo:
		l.Info(msg, args...)
	case LogLevelWarn:
		l.Warn(msg, args...)
	case LogLevelError:
		l.Error(msg, args...)
	default:
		l.Info(msg, args...)
	}
}
