package renderer

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false so callers skip building the record at all.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs the logger used by the renderer and the passes built on it. By default nothing is logged.
// Passing nil restores the silent default.
//
// Levels in use:
//   - Debug: per pass and per allocation diagnostics
//   - Info: lifecycle (device, swapchain, graph build)
//   - Warn: recoverable conditions (out of date swapchain, ignored declarations, unknown uniforms)
//   - Error: failed operations, and fatal conditions right before the process panics
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the active logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// NewLogger builds a text or json logger writing to w at the named level.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to their slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// fatalf reports an unrecoverable condition and panics. Fence timeouts and driver failures while submitting or
// presenting end up here.
func fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Logger().Error(msg)
	log.Panicf("%s", msg)
}
