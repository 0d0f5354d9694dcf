package log

import (
	"context"
	"errors"
	"log/slog"
)

type fanout []slog.Handler

// Fanout duplicates every record to all handlers that accept its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	ret := make(fanout, len(f))
	for i, h := range f {
		ret[i] = h.WithAttrs(attrs)
	}
	return ret
}

func (f fanout) WithGroup(name string) slog.Handler {
	ret := make(fanout, len(f))
	for i, h := range f {
		ret[i] = h.WithGroup(name)
	}
	return ret
}
