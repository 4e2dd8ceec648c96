// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging wraps go.uber.org/zap behind a narrow interface so
// the rest of the codebase depends on a small vocabulary of logging
// calls rather than on zap directly.
package logging

import "go.uber.org/zap"

// Logger is the logging surface every component is given at
// construction time.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Sync() error
	// With returns a Logger that always includes the given fields.
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production zap logger at the given level ("debug",
// "info", "warn", "error"). Unrecognized levels fall back to "info".
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z}, nil
}

// NoOp returns a Logger that discards everything, for tests.
func NoOp() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.z.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error                           { return l.z.Sync() }
func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}
