package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide sugared logger. It starts as a development logger
// so packages can log from tests without calling Init.
var Log *zap.SugaredLogger

func init() {
	Log = zap.NewNop().Sugar()
	if l, err := build("debug", "console"); err == nil {
		Log = l
	}
}

// Init replaces the package logger according to the environment.
func Init(level, environment string) error {
	encoding := "console"
	if environment == "production" {
		encoding = "json"
	}
	l, err := build(level, encoding)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func build(level, encoding string) (*zap.SugaredLogger, error) {
	lvl := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config := zap.Config{
		Encoding:         encoding,
		Level:            lvl,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return zapLogger.Sugar(), nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

func Infof(template string, args ...interface{}) {
	Log.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	Log.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	Log.Errorf(template, args...)
}

func Debugf(template string, args ...interface{}) {
	Log.Debugf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	Log.Fatalf(template, args...)
}
