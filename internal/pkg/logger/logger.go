package logger

import (
	"context"
	"io"
	"log/slog"
)

// ctxKey is a private key type for log attributes carried in a context.Context.
type ctxKey struct{}

// ContextHandler folds slog attributes stored within context.Context
// into every record, so that methods like slog.InfoContext pick up
// attributes attached earlier with WithAttrs.
type ContextHandler struct {
	slog.Handler
}

// New builds the application logger: a text handler writing to w at the
// given level, wrapped in a ContextHandler.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return slog.New(&ContextHandler{Handler: handler})
}

// Handle adds contextual attributes to the record before
// calling the underlying handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a context carrying the given slog attributes,
// appended to any attributes already present.
func WithAttrs(parent context.Context, attrs ...slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if v, ok := parent.Value(ctxKey{}).([]slog.Attr); ok {
		v = append(v, attrs...)
		return context.WithValue(parent, ctxKey{}, v)
	}

	return context.WithValue(parent, ctxKey{}, attrs)
}

// replaceAttr renders error attribute values in their string form.
func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindAny {
		if err, ok := attr.Value.Any().(error); ok {
			attr.Value = slog.StringValue(err.Error())
		}
	}

	return attr
}
