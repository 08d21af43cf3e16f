// Package genai wraps the external text-generation backends. Each client
// takes a finished prompt, performs exactly one upstream call (no retries),
// and returns the generated text.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAPIKey means the backend has no credential configured.
	ErrMissingAPIKey = errors.New("genai: api key not configured")

	// ErrEmptyResponse means the backend answered without any text.
	ErrEmptyResponse = errors.New("genai: empty response")
)

// Generator is the prompt-in, text-out contract the services depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Configured reports whether the client has the credentials it needs.
	Configured() bool
}

// APIError is a non-2xx answer from a backend.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Options selects and configures a backend.
type Options struct {
	Provider string // gemini|openai
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds the Generator named by opts.Provider. A missing API key is not
// an error here; the client reports it per call so the server can still start.
func New(opts Options) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "gemini":
		g := NewGemini(opts.APIKey, opts.Model)
		if opts.BaseURL != "" {
			g.baseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		return g, nil
	case "openai":
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("genai: unknown provider %q", opts.Provider)
	}
}
