package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logging surface shared by every rawview package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Level is a minimum log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name such as "debug" or "WARN".
// Unknown names return LevelInfo and an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New wraps an slog handler. A nil handler falls back to slog's default.
func New(handler slog.Handler) Logger {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &slogLogger{logger: slog.New(handler)}
}

// FromSlog adapts an existing *slog.Logger.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return New(nil)
	}
	return &slogLogger{logger: l}
}

// NewJSON logs JSON lines at or above level to w (stderr when nil).
func NewJSON(w io.Writer, level Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()}))
}

// NewText logs logfmt-style text at or above level to w (stderr when nil).
func NewText(w io.Writer, level Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()}))
}

// Default returns an Info-level JSON logger on stderr.
func Default() Logger {
	return NewJSON(nil, LevelInfo)
}

// Noop returns a logger that discards everything.
func Noop() Logger {
	return &noopLogger{}
}
