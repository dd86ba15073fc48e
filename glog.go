package sequencer

import (
	"fmt"

	"github.com/goliatone/go-logger/glog"
)

type glogLogger struct {
	logger glog.Logger
}

// NewGlogLogger adapts a go-logger instance to Logger. A nil logger falls
// back to FmtLogger.
func NewGlogLogger(logger glog.Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return glogLogger{logger: logger}
}

func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(format(msg, args)) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(format(msg, args)) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(format(msg, args)) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(format(msg, args)) }

func (l glogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

// format renders printf-style arguments up front so go-logger only sees a
// finished message.
func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
