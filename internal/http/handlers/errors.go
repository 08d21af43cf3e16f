// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings returned next to the
// human-readable "error" text so clients can branch without parsing messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "quota_exceeded",
//	  "error": "Daily limit reached (10/10). Please try again tomorrow."
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeQuotaExceeded    = "quota_exceeded"
	ErrCodeConfiguration    = "configuration_error"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeListFailed       = "list_failed"
)

// User-facing messages.
const (
	MsgMissingFields    = "Missing reviewText or businessType"
	MsgReviewTooLong    = "reviewText is too long"
	MsgConfiguration    = "Server configuration error"
	MsgGenerationFailed = "Failed to generate reply"
	MsgMethodNotAllowed = "Method not allowed"
	MsgQuotaSuffix      = ". Please try again tomorrow."
)
