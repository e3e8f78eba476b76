package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/courtside/internal/chunker"
	"github.com/timmy/courtside/internal/prompts"
)

// CleanerConfig holds configuration for the transcript cleaner.
type CleanerConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// LLMCleaner rewrites raw captions through an OpenAI-compatible chat completion API.
// It implements chunker.Transformer.
type LLMCleaner struct {
	client      *resty.Client
	model       string
	temperature float64
	maxTokens   int
	endpoint    string
}

var _ chunker.Transformer = (*LLMCleaner)(nil)

// NewLLMCleaner creates a new cleaner.
// Parameters:
//   - cfg: model, credentials and sampling settings.
//
// Returns:
//   - *LLMCleaner: initialized client wrapper.
func NewLLMCleaner(cfg *CleanerConfig) *LLMCleaner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	client := resty.New().
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	return &LLMCleaner{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		endpoint:    baseURL + "/chat/completions",
	}
}

// Model returns the model name being used.
func (c *LLMCleaner) Model() string {
	return c.model
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ChatMessage is one turn of a chat completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles accepted by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// CompletionOptions overrides the sampling settings for one call.
// Zero values fall back to the cleaner's configuration.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Transform sends one piece of transcript to the model and returns the cleaned text.
// Chunked requests get a system prompt that names their position in the document.
func (c *LLMCleaner) Transform(ctx context.Context, req chunker.TransformRequest) (string, error) {
	system := prompts.CleanSystem(req.Title)
	if req.Positioned() {
		system = prompts.CleanChunkSystem(req.Title, req.Part, req.Total)
	}
	return c.Complete(ctx, []ChatMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: req.Text},
	}, CompletionOptions{})
}

// Complete runs one chat completion and returns the trimmed reply.
func (c *LLMCleaner) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.Temperature > 0 {
		body.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call LLM API: %w", err)
	}

	if httpResp.IsError() {
		if resp.Error != nil {
			return "", fmt.Errorf("LLM API returned HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("LLM API returned HTTP %d: %s", httpResp.StatusCode(), truncateBody(httpResp.Body()))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// truncateBody keeps error messages readable when the upstream returns an HTML page.
func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// timeoutTransformer bounds each transformer call by its own deadline.
type timeoutTransformer struct {
	next    chunker.Transformer
	timeout time.Duration
}

// WithCallTimeout wraps t so every call runs under timeout. A non-positive
// timeout returns t unchanged.
func WithCallTimeout(t chunker.Transformer, timeout time.Duration) chunker.Transformer {
	if timeout <= 0 {
		return t
	}
	return &timeoutTransformer{next: t, timeout: timeout}
}

func (t *timeoutTransformer) Transform(ctx context.Context, req chunker.TransformRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Transform(ctx, req)
}
