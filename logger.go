package tracer

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

// loggerSinks receive every logger passed to SetLogger. The GPU packages
// register here so that they share the root configuration.
var loggerSinks []func(*slog.Logger)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for tracer and its internal packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by tracer:
//   - [slog.LevelDebug]: resource lifecycle, uploaded mesh data, uniform slice waits
//   - [slog.LevelInfo]: adapter selection and surface recreation
//   - [slog.LevelWarn]: failed recreations and skipped frames
//
// Example:
//
//	tracer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	for _, sink := range loggerSinks {
		sink(l)
	}
}

// Logger returns the current logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
