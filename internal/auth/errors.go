// Package auth resolves the caller identity for a request. A bearer
// credential, when presented, is verified and its subject wins over any
// identity claimed in the request body; without one, the claimed id (or
// nothing) is used as-is.
package auth

import "errors"

var (
	// ErrUnauthenticated means a credential was presented but is malformed,
	// expired, or fails verification. Callers must reject the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrProviderUnavailable means no verifier is configured, or the identity
	// provider could not be initialized. It is a server configuration fault.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
