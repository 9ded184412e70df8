package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns the attributes to stamp onto a record at emit
// time. The console uses it for live session state (match id, operator,
// connection) that changes between log calls.
type ContextProvider func() []slog.Attr

// ContextHandler decorates records with provider attributes before
// passing them to the next handler.
type ContextHandler struct {
	next    slog.Handler
	session ContextProvider
}

// NewContextHandler wraps next so every record carries the session
// attributes current at the moment it is logged.
func NewContextHandler(next slog.Handler, session ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, session: session}
}

// Enabled defers to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle stamps the current session attributes onto a clone of the
// record. The clone keeps the caller's record untouched when the same
// record fans out to other handlers.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.session == nil {
		return h.next.Handle(ctx, r)
	}
	attrs := h.session()
	if len(attrs) == 0 {
		return h.next.Handle(ctx, r)
	}
	stamped := r.Clone()
	stamped.AddAttrs(attrs...)
	return h.next.Handle(ctx, stamped)
}

// WithAttrs keeps the provider while adding static attributes downstream.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &ContextHandler{next: h.next.WithAttrs(attrs), session: h.session}
}

// WithGroup opens the group downstream and keeps the provider.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{next: h.next.WithGroup(name), session: h.session}
}
