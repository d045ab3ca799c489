package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes computed at log time.
type ContextProvider func() []slog.Attr

// RunContext returns a provider adding run_id while a run is active.
// current returns "" when no run is active.
func RunContext(current func() string) ContextProvider {
	return func() []slog.Attr {
		if id := current(); id != "" {
			return []slog.Attr{slog.String("run_id", id)}
		}
		return nil
	}
}

// ContextHandler appends the attributes of its providers to every record.
type ContextHandler struct {
	inner     slog.Handler
	providers []ContextProvider
}

// NewContextHandler wraps inner. Nil providers are ignored.
func NewContextHandler(inner slog.Handler, providers ...ContextProvider) *ContextHandler {
	h := &ContextHandler{inner: inner}
	for _, p := range providers {
		if p != nil {
			h.providers = append(h.providers, p)
		}
	}
	return h
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	cloned := false
	for _, p := range h.providers {
		attrs := p()
		if len(attrs) == 0 {
			continue
		}
		if !cloned {
			r = r.Clone()
			cloned = true
		}
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), providers: h.providers}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), providers: h.providers}
}
