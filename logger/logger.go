package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var l *zap.Logger

func init() {
	l = mustNew(zapcore.InfoLevel, "console")
	zap.ReplaceGlobals(l)
}

// Init rebuilds the global logger from configuration. The std "log"
// package is redirected so third-party libraries end up in the same sink.
func Init(level, encoding string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zl, err := newLogger(lvl, encoding)
	if err != nil {
		return err
	}

	l = zl
	zap.ReplaceGlobals(l)

	if _, err := zap.RedirectStdLogAt(l, zapcore.InfoLevel); err != nil {
		return fmt.Errorf("failed to redirect std log: %w", err)
	}
	return nil
}

func mustNew(level zapcore.Level, encoding string) *zap.Logger {
	zl, err := newLogger(level, encoding)
	if err != nil {
		panic(err)
	}
	return zl
}

// newLogger writes everything below ERROR to stdout and the rest to stderr.
func newLogger(level zapcore.Level, encoding string) (*zap.Logger, error) {
	encoder, err := getEncoder(encoding)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			encoder,
			zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			}),
		),
		zapcore.NewCore(
			encoder,
			zapcore.Lock(os.Stderr),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}),
		),
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func getEncoder(encoding string) (zapcore.Encoder, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey: "message",

		LevelKey:    "level",
		EncodeLevel: zapcore.CapitalLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.ISO8601TimeEncoder,

		CallerKey:      "caller",
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	switch encoding {
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("failed to find encoder: %q", encoding)
	}
}

func Debug(msg string, fields ...zap.Field) { l.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { l.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { l.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { l.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { l.Fatal(msg, fields...) }

// L returns the underlying zap logger.
func L() *zap.Logger { return l }

func Sync() error {
	return l.Sync()
}
