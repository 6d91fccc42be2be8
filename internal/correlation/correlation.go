// Package correlation mints and propagates the correlation id that ties
// together every event and log line originating from one webhook delivery.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// Generate returns a fresh correlation id. Generated exactly once per
// webhook delivery, at the ingestion edge.
func Generate() string {
	return uuid.NewString()
}

// IsValid reports whether s looks like a correlation id we minted.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewContext returns a context carrying the correlation id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation id carried by ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
