package billing

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithAccountID stores the authenticated account ID in the context. The
// authentication middleware sits outside this module; every metering call
// receives the account explicitly through the context rather than any
// process-global request state, so tests can inject any account.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, accountID)
}

// AccountIDFromContext extracts the account ID set by WithAccountID.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}
