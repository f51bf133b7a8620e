package logging

import (
	"sync"

	"github.com/pion/logging"
)

type levelSetter interface {
	SetLevel(logging.LogLevel)
}

var (
	mu            sync.Mutex
	loggerFactory = logging.NewDefaultLoggerFactory()
	loggers       []levelSetter
)

// NewLogger creates a leveled logger for scope, e.g. "cameraview/session".
func NewLogger(scope string) logging.LeveledLogger {
	mu.Lock()
	defer mu.Unlock()

	l := loggerFactory.NewLogger(scope)
	if s, ok := l.(levelSetter); ok {
		loggers = append(loggers, s)
	}
	return l
}

// SetLevel changes the level of every logger, including the ones that were
// already created by package initializers.
func SetLevel(level logging.LogLevel) {
	mu.Lock()
	defer mu.Unlock()

	loggerFactory.DefaultLogLevel = level
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// ParseLevel maps a config string onto a log level. Unknown names yield LogLevelInfo.
func ParseLevel(name string) logging.LogLevel {
	switch name {
	case "disabled":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}
