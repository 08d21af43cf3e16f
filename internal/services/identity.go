package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
)

// ResolveIdentity runs the resolver and folds provider faults into
// ErrConfiguration. auth.ErrUnauthenticated passes through unchanged.
func ResolveIdentity(ctx context.Context, r *auth.Resolver, authorization, claimedID string) (*auth.Identity, error) {
	id, err := r.Resolve(ctx, authorization, claimedID)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, auth.ErrProviderUnavailable) {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil, err
}
