// Package obslog wraps zap into the service-scoped logger used across the
// pricing core, following the logging conventions of the monorepo this
// module grew out of.
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin, named wrapper around a zap.SugaredLogger.
type Logger struct {
	base *zap.SugaredLogger
	name string
}

// Config controls logger construction.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool
	Encoding    string // json or console
}

// New builds a Logger named after the component that owns it.
func New(name string, cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		_ = level.Set(cfg.Level)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{base: z.Sugar().Named(name), name: name}, nil
}

// Noop returns a Logger that discards everything; useful in tests.
func Noop() *Logger {
	return &Logger{base: zap.NewNop().Sugar(), name: "noop"}
}

// NewFromEnv picks a sane default when no explicit config is supplied,
// falling back to a console encoder outside of production-like environments.
func NewFromEnv(name string) *Logger {
	env := os.Getenv("PRICING_ENV")
	cfg := Config{Level: "info", Encoding: "json"}
	if env == "" || env == "dev" || env == "development" {
		cfg.Encoding = "console"
		cfg.Development = true
	}
	l, err := New(name, cfg)
	if err != nil {
		return Noop()
	}
	return l
}

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{base: l.base.With(kv...), name: l.name}
}

func (l *Logger) Debugw(msg string, kv ...interface{}) { l.base.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...interface{})  { l.base.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...interface{})  { l.base.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...interface{}) { l.base.Errorw(msg, kv...) }

// Nonfatal logs an error that the caller has decided not to propagate,
// tagging it with the taxonomy kind so dashboards can group by bucket.
func (l *Logger) Nonfatal(kind string, err error, kv ...interface{}) {
	args := append([]interface{}{"error_kind", kind, "error", err}, kv...)
	l.base.Warnw("nonfatal error", args...)
}

// Sync flushes buffered log entries; call it before process exit.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
