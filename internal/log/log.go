// Package log defines the logging interface used throughout netsync. It is
// heavily inspired by github.com/jackc/pgx's logger: LogLevel is a type
// alias rather than a newtype so that callers can plug in their own logger
// without importing this package's concrete level type.
package log

import (
	"context"
	"fmt"
)

type LogLevel = int

type ErrInvalidLogLevel struct {
	Level any
}

func (e ErrInvalidLogLevel) Error() string {
	return fmt.Sprintf("invalid log level: %v", e.Level)
}

const (
	LogLevelTrace = 6
	LogLevelDebug = 5
	LogLevelInfo  = 4
	LogLevelWarn  = 3
	LogLevelError = 2
	LogLevelNone  = 1
)

// Logger is the logging sink used by the server, client and transport
// layers. The default concrete implementation wraps log15; applications
// embedding netsync may supply their own.
type Logger interface {
	Log(ctx context.Context, level LogLevel, msg string, data map[string]interface{})
}

func StringFromLogLevel(lvl LogLevel) (string, error) {
	switch lvl {
	case LogLevelTrace:
		return "trace", nil
	case LogLevelDebug:
		return "debug", nil
	case LogLevelInfo:
		return "info", nil
	case LogLevelWarn:
		return "warn", nil
	case LogLevelError:
		return "error", nil
	case LogLevelNone:
		return "none", nil
	default:
		return "invalid", ErrInvalidLogLevel{lvl}
	}
}
