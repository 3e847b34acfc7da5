// Package hlog is the ambient structured-logging layer: a thin Logger
// interface over log/slog plus a colorized terminal handler, grounded
// in the shape go-ethereum's log package tests exercise (NewLogger,
// Root/SetDefault, NewTerminalHandlerWithLevel, level constants Trace
// through Crit) and in go-ethereum's go.mod choice of
// github.com/mattn/go-colorable and github.com/mattn/go-isatty for TTY
// color detection, since the package's own source wasn't available to
// copy from directly.
package hlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level mirrors go-ethereum's six-level scheme, mapped onto slog's
// narrower Debug..Error range by spacing Trace/Crit outside it.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelCrit  = slog.Level(12)
)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelCrit:  "CRIT",
}

// Logger is the interface every heimdall component logs through, never
// the bare *slog.Logger, so the terminal/JSON handler choice and the
// root/default swap stay a collaborator-level concern.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	With(ctx ...any) Logger
}

type logger struct{ inner *slog.Logger }

// NewLogger wraps an slog.Handler as a Logger.
func NewLogger(h slog.Handler) Logger { return &logger{inner: slog.New(h)} }

func (l *logger) Trace(msg string, ctx ...any) { l.inner.Log(context.Background(), LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.inner.Log(context.Background(), LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.inner.Log(context.Background(), LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.inner.Log(context.Background(), LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.inner.Log(context.Background(), LevelError, msg, ctx...) }
func (l *logger) Crit(msg string, ctx ...any)  { l.inner.Log(context.Background(), LevelCrit, msg, ctx...) }
func (l *logger) With(ctx ...any) Logger       { return &logger{inner: l.inner.With(ctx...)} }

var root atomic.Pointer[logger]

func init() {
	root.Store(&logger{inner: slog.New(NewTerminalHandler(os.Stderr, LevelInfo))})
}

// Root returns the process-wide default Logger.
func Root() Logger { return root.Load() }

// SetDefault replaces the process-wide default Logger. Components that
// were already handed their own Logger are unaffected; this only
// changes what Root() returns afterward.
func SetDefault(l Logger) {
	if lg, ok := l.(*logger); ok {
		root.Store(lg)
		return
	}
	root.Store(&logger{inner: slog.New(slogAdapter{l})})
}

// slogAdapter lets a foreign Logger implementation (spec.md-style
// dependency injection, mirrored from the go-ethereum test that swaps
// in a custom struct embedding Logger) stand in for slog.Handler calls
// routed through Root().
type slogAdapter struct{ Logger }

func (a slogAdapter) Enabled(context.Context, slog.Level) bool { return true }
func (a slogAdapter) Handle(_ context.Context, r slog.Record) error {
	a.Logger.Info(r.Message)
	return nil
}
func (a slogAdapter) WithAttrs([]slog.Attr) slog.Handler { return a }
func (a slogAdapter) WithGroup(string) slog.Handler      { return a }

// NewTerminalHandler returns a human-readable, TTY-colorized handler
// when w is a terminal device (detected with go-isatty, writing
// through go-colorable so Windows consoles get ANSI translation too),
// otherwise a plain one.
func NewTerminalHandler(w io.Writer, level slog.Level) slog.Handler {
	useColor := false
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
		useColor = isatty.IsTerminal(f.Fd())
	}
	return &terminalHandler{w: w, level: level, color: useColor}
}

// JSONHandler returns a machine-readable structured handler for
// piping logs to a collector, per the ambient-logging expectations
// that every component logs through Logger rather than fmt.Println.
func JSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: LevelTrace})
}

type terminalHandler struct {
	w     io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	name := levelNames[r.Level]
	if name == "" {
		name = r.Level.String()
	}
	line := formatTerminalLine(r.Time, name, r.Message, h.attrs, r, h.color)
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *terminalHandler) WithGroup(string) slog.Handler { return h }

func formatTerminalLine(t time.Time, level, msg string, attrs []slog.Attr, r slog.Record, color bool) string {
	var b []byte
	if color {
		b = append(b, levelColor(level)...)
	}
	b = append(b, level...)
	if color {
		b = append(b, resetColor...)
	}
	b = append(b, ' ', '[')
	b = t.AppendFormat(b, "01-02|15:04:05.000")
	b = append(b, ']', ' ')
	b = append(b, msg...)
	for _, a := range attrs {
		b = append(b, ' ')
		b = append(b, a.Key...)
		b = append(b, '=')
		b = append(b, a.Value.String()...)
	}
	r.Attrs(func(a slog.Attr) bool {
		b = append(b, ' ')
		b = append(b, a.Key...)
		b = append(b, '=')
		b = append(b, a.Value.String()...)
		return true
	})
	b = append(b, '\n')
	return string(b)
}

const resetColor = "\x1b[0m"

func levelColor(name string) string {
	switch name {
	case "CRIT", "ERROR":
		return "\x1b[31m"
	case "WARN":
		return "\x1b[33m"
	case "INFO":
		return "\x1b[32m"
	default:
		return "\x1b[36m"
	}
}
