package llmprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible gateways
	MaxRetries uint64
	Timeout    time.Duration
}

// OpenAIProvider implements Provider against an OpenAI-compatible REST API.
type OpenAIProvider struct {
	client     *openai.Client
	maxRetries uint64
}

// NewOpenAIProvider builds an OpenAIProvider. Returns an error if cfg.APIKey is empty.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmprovider: OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		maxRetries: retries,
	}, nil
}

// Complete sends req to the chat completions endpoint, retrying
// transient errors with capped exponential backoff.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)

	var resp openai.ChatCompletionResponse
	err := backoff.Retry(func() error {
		r, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}, policy)
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("llmprovider: empty choices in response")
	}

	return Response{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// isPermanent reports whether err is a client-side error (auth, bad
// request) not worth retrying.
func isPermanent(err error) bool {
	var apiErr *openai.APIError
	if !asAPIError(err, &apiErr) {
		return false
	}
	switch apiErr.HTTPStatusCode {
	case 400, 401, 403, 404:
		return true
	default:
		return false
	}
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
