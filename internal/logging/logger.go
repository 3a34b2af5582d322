// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by every package.
//
// The TUI owns stdout, so interactive commands log to a file under the
// config directory while one-shot commands log to stderr. Sinks are chosen
// with a "file:<path>" or "stderr" string, mirroring the LOG_SINK convention.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "text" or "json". Empty means text.
	Format string
	// Sink is "stderr", "stdout", "discard" or "file:<path>". Empty means stderr.
	Sink string
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from opts. The returned closer releases a file sink
// and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	w, closer, err := openSink(opts.Sink)
	if err != nil {
		return nil, nopCloser{}, err
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h), closer, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSink(sink string) (io.Writer, io.Closer, error) {
	switch {
	case sink == "" || sink == "stderr":
		return os.Stderr, nopCloser{}, nil
	case sink == "stdout":
		return os.Stdout, nopCloser{}, nil
	case sink == "discard":
		return io.Discard, nopCloser{}, nil
	case strings.HasPrefix(sink, "file:"):
		path := strings.TrimPrefix(sink, "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		return f, f, nil
	default:
		return nil, nil, fmt.Errorf("unknown log sink %q", sink)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyLogger    ctxKey = "logger"
)

// WithRequestID stores a request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, l)
}

// FromContext returns the context logger (or fallback, or slog.Default)
// with request_id attached when present.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	l, _ := ctx.Value(ctxKeyLogger).(*slog.Logger)
	if l == nil {
		l = fallback
	}
	if l == nil {
		l = slog.Default()
	}
	if id := RequestID(ctx); id != "" {
		return l.With("request_id", id)
	}
	return l
}
