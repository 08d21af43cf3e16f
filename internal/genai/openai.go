package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls any OpenAI-compatible chat completions endpoint, including
// Gemini's compatibility layer via BaseURL.
type OpenAI struct {
	client     openai.Client
	model      string
	configured bool
}

// NewOpenAI builds a client. SDK retries are disabled: one request per call.
func NewOpenAI(apiKey, model, baseURL string, extra ...option.RequestOption) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	opts = append(opts, extra...)

	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      model,
		configured: strings.TrimSpace(apiKey) != "",
	}
}

// Configured reports whether an API key is set.
func (o *OpenAI) Configured() bool { return o.configured }

// Generate sends prompt as a single user message.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if !o.configured {
		return "", ErrMissingAPIKey
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{Provider: "openai", StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("openai: %w", ctxErr)
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
