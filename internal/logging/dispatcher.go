package logging

import (
	"log/slog"

	"github.com/matchdesk/console/internal/dispatcher"
)

// dispatcherLogger adapts slog to the dispatcher's Logger interface.
type dispatcherLogger struct {
	logger *slog.Logger
}

// NewDispatcherLogger wraps a slog.Logger for use by the dispatcher.
func NewDispatcherLogger(logger *slog.Logger) dispatcher.Logger {
	return &dispatcherLogger{logger: logger}
}

func (l *dispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *dispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *dispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}
