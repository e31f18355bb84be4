// Package logging carries a clog backed slog.Logger through contexts. Output
// goes to stderr since stdout is reserved for command output and MCP stdio.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidLevel = goerr.New("invalid log level")

type ctxLoggerKey struct{}

var fallback atomic.Pointer[slog.Logger]

func init() {
	fallback.Store(New(slog.LevelInfo, os.Stderr))
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, goerr.Wrap(ErrInvalidLevel, "unknown level", goerr.V("level", level))
}

func New(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	return slog.New(clog.New(
		clog.WithWriter(w),
		clog.WithLevel(level),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	))
}

// Configure installs a logger at level as the default and attaches it to ctx
func Configure(ctx context.Context, level string, w io.Writer) (context.Context, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return ctx, err
	}

	logger := New(lvl, w)
	SetDefault(logger)
	return With(ctx, logger), nil
}

func Default() *slog.Logger {
	return fallback.Load()
}

func SetDefault(logger *slog.Logger) {
	fallback.Store(logger)
}

func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns the logger attached to ctx, or the default one
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return Default()
}
