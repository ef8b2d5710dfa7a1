package runid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New generates a random UUID v4 run ID. One run ID covers a single
// executor invocation (or one ops API request that triggers one).
func New() string {
	return uuid.NewString()
}

// WithRunID returns a copy of ctx with the run ID attached.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the run ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
