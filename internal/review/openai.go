package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider calls the OpenAI chat completions API.
type OpenAIProvider struct {
	model     string
	maxTokens int64
	client    openai.Client
}

// NewOpenAIProvider creates a provider. The SDK's own retries are disabled;
// Client applies the configured retry policy instead.
func NewOpenAIProvider(apiKey, model, baseURL string, maxTokens int) *OpenAIProvider {
	if maxTokens <= 0 {
		maxTokens = 10000
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 180 * time.Second}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		model:     model,
		maxTokens: int64(maxTokens),
		client:    openai.NewClient(opts...),
	}
}

// Complete sends a system and a user message and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
		TopP:        openai.Float(0.1),
		MaxTokens:   openai.Int(p.maxTokens),
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai api: %w", err)
	}
	if statusRetryable(apiErr.StatusCode) {
		return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	if apiErr.Message != "" {
		return fmt.Errorf("openai api status %d: %s", apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("openai api status %d", apiErr.StatusCode)
}

func (p *OpenAIProvider) Model() string { return p.model }

// Close is a no-op; the SDK client holds no resources of its own.
func (p *OpenAIProvider) Close() {}
