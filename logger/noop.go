package logger

import "context"

type noopLogger struct{}

func (n *noopLogger) Debug(msg string, args ...any)          {}
func (n *noopLogger) Info(msg string, args ...any)           {}
func (n *noopLogger) Warn(msg string, args ...any)           {}
func (n *noopLogger) Error(msg string, args ...any)          {}
func (n *noopLogger) With(args ...any) Logger                { return n }
func (n *noopLogger) WithContext(ctx context.Context) Logger { return n }
