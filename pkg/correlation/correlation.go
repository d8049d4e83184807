package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Header is the wire name for the correlation id on inbound and outbound calls.
const Header = "X-Correlation-ID"

type contextKey struct{}

// WithID returns a context carrying the correlation id. Blank ids are ignored.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation id attached to ctx, or empty string.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Ensure returns a context that carries a correlation id, generating one when
// the caller did not supply any, together with the id in effect.
func Ensure(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = FromContext(ctx)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return WithID(ctx, id), id
}
