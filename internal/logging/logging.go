// Package logging provides the slog handlers the engine and cmd/bisondb
// log through (spec §10.2): a colorized console handler alongside plain
// text/json bases, and a bounded in-memory buffer of recent records.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Level constants beyond slog's four, matching the source project's
// zap-derived severity ladder (DPanic/Panic/Fatal all render as
// ERROR+N).
const (
	LevelDPanic = slog.LevelError + 1
	LevelPanic  = slog.LevelError + 2
	LevelFatal  = slog.LevelError + 3
)

// NewHandlerOpts configures NewHandler.
type NewHandlerOpts struct {
	// Base selects the underlying format: "console" (colorized,
	// human-readable), "text", or "json". Ignored if Handler is set.
	Base string

	// Handler, if set, is used directly instead of constructing one from
	// Base — the "embed into a caller-supplied slog.Handler" case.
	Handler slog.Handler

	Level slog.Level

	// RecentEntriesSize, if positive, wraps the handler in a circular
	// buffer retaining the last N records for engine/CLI introspection
	// (read back with Recent).
	RecentEntriesSize int
}

// NewHandler builds a slog.Handler per opts, writing to w unless opts.
// Handler overrides it.
func NewHandler(w io.Writer, opts *NewHandlerOpts) slog.Handler {
	var h slog.Handler

	switch {
	case opts.Handler != nil:
		h = opts.Handler
	case opts.Base == "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level, AddSource: true})
	case opts.Base == "text":
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level, AddSource: true})
	default:
		h = newConsoleHandler(w, opts)
	}

	if opts.RecentEntriesSize > 0 {
		h = newRecentHandler(h, opts.RecentEntriesSize)
	}

	return h
}

// WithName returns a logger that adds a "name" attribute to every record,
// the convention used throughout the engine for per-component loggers
// (e.g. WithName(log, "engine"), WithName(log, "storage")).
func WithName(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("name", name))
}

// Error wraps err as a slog attribute under the conventional "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// shortPath trims file down to its last two path segments, for compact
// source locations in console output.
func shortPath(file string) string {
	parts := strings.Split(file, "/")
	if len(parts) <= 2 {
		return strings.TrimPrefix(file, "/")
	}

	return strings.Join(parts[len(parts)-2:], "/")
}

// discardHandler is used where a caller wants logging disabled entirely.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs(_ []slog.Attr) slog.Handler    { return h }
func (h discardHandler) WithGroup(_ string) slog.Handler         { return h }

// Discard is a logger that drops every record, for tests that don't care
// about log output.
var Discard = slog.New(discardHandler{})
