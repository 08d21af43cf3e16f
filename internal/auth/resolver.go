package auth

import (
	"context"
	"fmt"
	"strings"
)

// Verifier turns a raw bearer token into the provider-asserted subject id.
// Implementations wrap ErrUnauthenticated for bad tokens and
// ErrProviderUnavailable for provider faults.
type Verifier interface {
	Verify(ctx context.Context, raw string) (string, error)
}

// Identity is a resolved caller. Verified is false on the legacy path where
// the id was only claimed in the request body.
type Identity struct {
	Subject  string
	Verified bool
}

// Resolver applies the credential-over-claim precedence rule.
type Resolver struct {
	// Verifier may be nil when no identity provider is configured; any
	// presented credential then fails with ErrProviderUnavailable.
	Verifier Verifier
}

// NewResolver returns a Resolver backed by v.
func NewResolver(v Verifier) *Resolver {
	return &Resolver{Verifier: v}
}

// Resolve returns the caller identity for the given Authorization header
// value and optional body-claimed id. A nil Identity with a nil error means
// a fully anonymous caller.
//
// A non-empty Authorization header is always treated as a credential: if it
// is not a well-formed bearer token, or the token fails verification, the
// result is ErrUnauthenticated and the claimed id is ignored.
func (r *Resolver) Resolve(ctx context.Context, authorization, claimedID string) (*Identity, error) {
	if strings.TrimSpace(authorization) == "" {
		claimedID = strings.TrimSpace(claimedID)
		if claimedID == "" {
			return nil, nil
		}
		return &Identity{Subject: claimedID}, nil
	}

	raw, ok := BearerToken(authorization)
	if !ok {
		return nil, fmt.Errorf("%w: malformed authorization header", ErrUnauthenticated)
	}
	if r == nil || r.Verifier == nil {
		return nil, ErrProviderUnavailable
	}
	sub, err := r.Verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &Identity{Subject: sub, Verified: true}, nil
}

// BearerToken extracts the token from "Bearer <token>" (scheme is
// case-insensitive). ok is false for any other shape.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
