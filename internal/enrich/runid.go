package enrich

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// WithRunID stamps the enrichment run ID onto the context so lower layers can
// attribute progress events without threading the ID through every call.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom extracts the run ID stamped by WithRunID, if any.
func RunIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}
