package logger

import "context"

// nullLogger discards everything. Used in tests and as a safe default.
type nullLogger struct{}

// NewNullLogger returns a Logger that discards all output.
func NewNullLogger() Logger { return nullLogger{} }

func (nullLogger) Debug(ctx context.Context, message string, fields ...Field)            {}
func (nullLogger) Info(ctx context.Context, message string, fields ...Field)             {}
func (nullLogger) Warn(ctx context.Context, message string, fields ...Field)             {}
func (nullLogger) Error(ctx context.Context, message string, err error, fields ...Field) {}
func (nullLogger) WithComponent(component string) Logger                                 { return nullLogger{} }
