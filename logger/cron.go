package logger

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	s *zap.SugaredLogger
}

// Cron adapts the global logger to robfig/cron's Logger interface.
func Cron() cron.Logger {
	return cronLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar().Named("cron")}
}

// Info is demoted to debug: cron reports every wake-up.
func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.s.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
