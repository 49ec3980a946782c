package logging

import (
	"context"
	"log/slog"
)

// Slog returns a *slog.Logger backed by the pipeline, so libraries
// that want slog (echo middleware, gorm hooks) flow through the same
// buffering and redaction.
func (l *Logger) Slog(source string) *slog.Logger {
	return slog.New(&slogHandler{l: l, source: source})
}

type slogHandler struct {
	l      *Logger
	source string
	attrs  []slog.Attr
	group  string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.l.cfg.MinLevel
}

func (h *slogHandler) Handle(_ context.Context, rec slog.Record) error {
	ctx := make(map[string]any, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		ctx[h.key(a.Key)] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		ctx[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.l.Log(rec.Level, h.source, rec.Message, ctx)
	return nil
}

func (h *slogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &nh
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	nh := *h
	if nh.group == "" {
		nh.group = name
	} else {
		nh.group = nh.group + "." + name
	}
	return &nh
}
