package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "rebalance_bot"

	initOnce sync.Once
	initErr  error
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init builds the package-level loggers. Idempotent; the helpers call it
// themselves on first use, so logging from a constructor is safe before
// main gets around to it.
func Init() error {
	initOnce.Do(func() {
		l, err := zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			initErr = err
			return
		}

		InfoLogger = l
		FatalLogger = l
	})

	return initErr
}

func get() *zap.Logger {
	if InfoLogger == nil {
		_ = Init()
	}
	if InfoLogger == nil {
		return zap.NewNop()
	}
	return InfoLogger
}

func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Info(msg)
}

func Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Warn(msg)
}

func Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Error(msg)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	get().With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
