// internal/llm/client.go
package llm

import (
	"alcyxob/coach-ai/internal/config"
	"alcyxob/coach-ai/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// --- Error Definitions ---
var (
	ErrMalformedOutput = errors.New("model output did not contain valid JSON for the expected schema")
	ErrNoCompletion    = errors.New("no completion choices in response")
)

const (
	maxTransientRetries = 2
	retryBaseDelay      = 500 * time.Millisecond
)

// Completer is the completion surface the generative steps depend on.
// Agents take this interface so tests can substitute a scripted fake.
type Completer interface {
	// CompleteJSON sends a system+user prompt, requires a single JSON object
	// in the reply and unmarshals it into out.
	CompleteJSON(ctx context.Context, system, user string, out any) (domain.TokenUsage, error)
	// Stream yields incremental text deltas and returns the usage summary.
	Stream(ctx context.Context, system, user string, onDelta func(string)) (domain.TokenUsage, error)
	// RunTools drives a bounded tool-augmented multi-turn conversation.
	RunTools(ctx context.Context, req ToolRunRequest, onEvent func(ToolEvent)) (*ToolRunResult, error)
}

// Embedder produces embedding vectors for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client wraps an OpenAI-compatible completion API with transient-failure
// retry. HTTP 429 and 5xx are retried a bounded number of times; schema
// failures and other 4xx are not.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
}

// NewClient builds a completion client from configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// Model returns the configured completion model identifier.
func (c *Client) Model() string {
	return c.model
}

// CompleteJSON implements Completer. The provider-native json_object response
// format is the primary path; the brace-balanced extractor is kept as a
// fallback for providers that wrap the object in prose. A single corrective
// re-ask is made when the first reply does not satisfy the schema.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, out any) (domain.TokenUsage, error) {
	var usage domain.TokenUsage

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}

	content, u, err := c.completeOnce(ctx, messages)
	usage.Add(u)
	if err != nil {
		return usage, err
	}

	if parseErr := unmarshalExtracted(content, out); parseErr != nil {
		// Malformed output is not a transient error; re-ask once with an
		// explicit corrective instruction, then give up.
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: "Your previous reply was not a valid JSON object for the requested schema. Respond again with ONLY a single valid JSON object and no surrounding text.",
			},
		)
		content, u, err = c.completeOnce(ctx, messages)
		usage.Add(u)
		if err != nil {
			return usage, err
		}
		if parseErr = unmarshalExtracted(content, out); parseErr != nil {
			return usage, fmt.Errorf("%w: %v", ErrMalformedOutput, parseErr)
		}
	}

	return usage, nil
}

// completeOnce makes one non-streaming JSON-mode call with transient retry.
func (c *Client) completeOnce(ctx context.Context, messages []openai.ChatCompletionMessage) (string, domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", domain.TokenUsage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", usageOf(resp.Usage), ErrNoCompletion
	}
	return resp.Choices[0].Message.Content, usageOf(resp.Usage), nil
}

// Stream implements Completer.
func (c *Client) Stream(ctx context.Context, system, user string, onDelta func(string)) (domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	var usage domain.TokenUsage
	err := c.withRetry(ctx, func() error {
		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return nil
			}
			if recvErr != nil {
				return recvErr
			}
			if resp.Usage != nil {
				usage = usageOf(*resp.Usage)
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				onDelta(resp.Choices[0].Delta.Content)
			}
		}
	})
	return usage, err
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openai.EmbeddingResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data in response")
	}
	return resp.Data[0].Embedding, nil
}

// withRetry retries fn on transient provider errors (429, 5xx) with a small
// linear backoff. Anything else fails immediately.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || attempt >= maxTransientRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay * time.Duration(attempt+1)):
		}
	}
}

// isTransient reports whether an error is a retryable provider failure.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func usageOf(u openai.Usage) domain.TokenUsage {
	return domain.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// unmarshalExtracted tries the content verbatim first, then each balanced
// JSON object candidate in order. The model sometimes emits prose around the
// object, or several JSON-like fragments; the first one that satisfies the
// target schema wins.
func unmarshalExtracted(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	offset := 0
	for {
		candidate, next, ok := ExtractJSONObject(content, offset)
		if !ok {
			return errors.New("no JSON object in reply satisfied the expected schema")
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
		offset = next
	}
}
