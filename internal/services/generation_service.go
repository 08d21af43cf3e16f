// Package services – GenerationService
//
// GenerationService turns a validated review into one call to the configured
// text-generation backend. It never retries; the call runs under Timeout and
// any failure (including the deadline) becomes an *UpstreamError.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-review-reply-backend/internal/genai"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GenerationRequest is the validated input of one generation.
type GenerationRequest struct {
	ReviewText   string
	BusinessType string
	Tone         Tone
}

// GenerationResult is the reply produced for a request.
type GenerationResult struct {
	Reply string
	Tone  Tone
}

// GenerationService proxies prompts to a genai.Generator.
type GenerationService struct {
	Generator genai.Generator
	Timeout   time.Duration

	// MaxReviewRunes rejects oversized reviews when > 0.
	MaxReviewRunes int
}

// NewGenerationService constructs a GenerationService.
func NewGenerationService(g genai.Generator, timeout time.Duration) *GenerationService {
	return &GenerationService{Generator: g, Timeout: timeout, MaxReviewRunes: 5000}
}

// Ready reports ErrConfiguration when no usable backend credential exists.
func (s *GenerationService) Ready() error {
	if s == nil || s.Generator == nil || !s.Generator.Configured() {
		return ErrConfiguration
	}
	return nil
}

// Validate checks the required fields.
func (s *GenerationService) Validate(req GenerationRequest) error {
	if strings.TrimSpace(req.ReviewText) == "" || strings.TrimSpace(req.BusinessType) == "" {
		return ErrValidation
	}
	if s.MaxReviewRunes > 0 && utf8.RuneCountInString(req.ReviewText) > s.MaxReviewRunes {
		return ErrReviewTooLong
	}
	return nil
}

// Generate builds the prompt and performs exactly one upstream call.
func (s *GenerationService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("review.business_type", req.BusinessType),
			attribute.String("review.tone", req.Tone.String()),
			attribute.Int("review.runes", utf8.RuneCountInString(req.ReviewText)),
		),
	)
	defer span.End()

	if err := s.Ready(); err != nil {
		generationRequests.WithLabelValues(outcomeNotConfigured).Inc()
		return nil, err
	}
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	prompt := BuildPrompt(req.BusinessType, req.Tone, req.ReviewText)
	text, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			generationRequests.WithLabelValues(outcomeNotConfigured).Inc()
			return nil, ErrConfiguration
		}
		uerr := &UpstreamError{Err: err}
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) {
			uerr.Message = apiErr.Message
		}
		if uerr.Timeout() {
			generationRequests.WithLabelValues(outcomeTimeout).Inc()
		} else {
			generationRequests.WithLabelValues(outcomeUpstreamError).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream")
		return nil, uerr
	}

	generationRequests.WithLabelValues(outcomeSuccess).Inc()
	return &GenerationResult{Reply: text, Tone: req.Tone}, nil
}
