// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the bearer credential once per request. Identify never
// rejects: it records either the verified identity or the verification error
// so that handlers can report it in their own order. RequireIdentity turns a
// missing or failed credential into 401.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyIdentity = "auth.identity"
	ctxKeyAuthErr  = "auth.err"

	// MsgSessionExpired is shown for any rejected credential.
	MsgSessionExpired = "Invalid or expired session. Please log in again."
	// MsgConfiguration is shown when no identity provider is usable.
	MsgConfiguration = "Server configuration error"
)

// IdentityResolver is satisfied by *auth.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization, claimedID string) (*auth.Identity, error)
}

// Identify verifies the Authorization header when present. Body-claimed ids
// are not considered here.
func Identify(r IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if strings.TrimSpace(h) == "" || r == nil {
			c.Next()
			return
		}
		id, err := r.Resolve(c.Request.Context(), h, "")
		switch {
		case err != nil:
			c.Set(ctxKeyAuthErr, err)
		case id != nil:
			c.Set(ctxKeyIdentity, id)
			c.Set(ctxKeyUserID, id.Subject)
			annotateLogger(c, func(l zerolog.Context) zerolog.Context {
				return l.Str("user_id", id.Subject)
			})
		}
		c.Next()
	}
}

// IdentityFrom returns the verified identity and the verification error
// recorded by Identify. Both are nil when no credential was sent.
func IdentityFrom(c *gin.Context) (*auth.Identity, error) {
	if v, ok := c.Get(ctxKeyAuthErr); ok {
		if err, ok := v.(error); ok {
			return nil, err
		}
	}
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id, nil
		}
	}
	return nil, nil
}

// RequireIdentity aborts unless Identify recorded a verified identity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := IdentityFrom(c)
		switch {
		case errors.Is(err, auth.ErrProviderUnavailable):
			abortAuth(c, http.StatusInternalServerError, "internal_error", MsgConfiguration)
		case err != nil || id == nil || !id.Verified:
			abortAuth(c, http.StatusUnauthorized, "unauthorized", MsgSessionExpired)
		default:
			c.Next()
		}
	}
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"error":      msg,
	})
}
