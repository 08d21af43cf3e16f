// Package services defines the business logic of the review-reply gateway:
// the quota gate, the generation proxy, and the per-user history.
// This file centralizes service-level error values so they can be returned
// consistently and mapped to HTTP results by the handler layer.
package services

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or empty request fields.
	ErrValidation = errors.New("validation failed")

	// ErrReviewTooLong is a validation failure for oversized review text.
	ErrReviewTooLong = fmt.Errorf("%w: review text too long", ErrValidation)

	// ErrConfiguration marks a missing server secret or an identity provider
	// that could not be initialized. Its message never names the secret.
	ErrConfiguration = errors.New("server configuration error")

	// ErrQuotaExceeded is matched by *QuotaExceededError via errors.Is.
	ErrQuotaExceeded = errors.New("daily limit reached")

	// ErrUpstream is matched by *UpstreamError via errors.Is.
	ErrUpstream = errors.New("upstream generation failed")

	// ErrHistoryNotFound indicates that the history item does not exist or
	// belongs to someone else.
	ErrHistoryNotFound = errors.New("history item not found")
)

// QuotaExceededError reports a rejected, non-exempt request. Error states
// the ceiling, so a stored count above a lowered limit prints as limit/limit.
type QuotaExceededError struct {
	Limit int
	Used  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Daily limit reached (%d/%d)", min(e.Used, e.Limit), e.Limit)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match.
func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// UpstreamError wraps any failure of the generation call.
type UpstreamError struct {
	// Message is safe to show to the caller; empty means use a generic text.
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrUpstream.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Timeout reports whether the upstream call ran out of time.
func (e *UpstreamError) Timeout() bool { return errors.Is(e.Err, context.DeadlineExceeded) }
