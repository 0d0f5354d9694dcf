package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type slogKeyT struct{}

var slogKey slogKeyT

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, ok := ctx.Value(slogKey).([]slog.Attr)
	if !ok || a == nil {
		a = make([]slog.Attr, 0, len(attrs))
	}
	// copy, so sibling contexts never share a backing array
	a = append(a[:len(a):len(a)], attrs...)
	return context.WithValue(ctx, slogKey, a)
}

// Options configure the process logger.
type Options struct {
	Verbose   int       // 0 info, 1 debug, 2+ debug with source location
	Quiet     bool      // console shows errors only
	Console   io.Writer // nil means os.Stderr
	File      io.Writer // optional JSON log destination
	FileLevel string    // level of the file handler, see ParseLevel
}

// New returns a logger writing human readable records to the console and,
// when opts.File is set, JSON records to the file.
func New(opts Options) *slog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose > 0 {
		level = slog.LevelDebug
	}
	if opts.Quiet {
		level = slog.LevelError
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{
			AddSource: opts.Verbose > 1,
			Level:     level,
		}),
	}

	if opts.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.File, &slog.HandlerOptions{
			AddSource: false,
			Level:     ParseLevel(opts.FileLevel),
		}))
	}

	return slog.New(NewContextHandler(Fanout(handlers...)))
}

// ParseLevel maps a configuration level name to slog.Level, defaulting to info.
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
