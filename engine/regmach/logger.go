package regmach

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the regmach package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger overrides the package logger. Intended for embedders that
// want translator/executor diagnostics; tests leave it at the nop default.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

// debug gates the sugared debugf helper used for translator tracing.
var debug = false

func debugf(format string, args ...any) {
	if debug {
		Logger().Sugar().Debugf(format, args...)
	}
}
