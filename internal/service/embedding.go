package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/courtside/internal/search"
)

const (
	jinaBaseURL   = "https://api.jina.ai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

// EmbeddingService generates transcript embeddings for the semantic index.
// Jina gets task hints for passages and queries; any other provider is
// treated as an OpenAI-compatible /embeddings endpoint.
type EmbeddingService struct {
	client     *resty.Client
	provider   string
	model      string
	dimensions int
	endpoint   string
}

var _ search.Embedder = (*EmbeddingService)(nil)

// EmbeddingConfig holds configuration for embedding service
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New().
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	provider := strings.ToLower(cfg.Provider)
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if provider == "jina" {
			baseURL = jinaBaseURL
		} else {
			baseURL = openAIBaseURL
		}
	}

	return &EmbeddingService{
		client:     client,
		provider:   provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		endpoint:   baseURL + "/embeddings",
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

type embeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a stored passage.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedOne(ctx, text, "retrieval.passage")
}

// EmbedQuery generates an embedding optimized for search.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.embedOne(ctx, query, "retrieval.query")
}

func (s *EmbeddingService) embedOne(ctx context.Context, text, task string) ([]float32, error) {
	req := embeddingRequest{
		Model:      s.model,
		Dimensions: s.dimensions,
		Input:      []string{text},
	}
	if s.provider == "jina" {
		req.Task = task
		req.EmbeddingType = "float"
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	if httpResp.IsError() {
		switch {
		case resp.Detail != "":
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		case resp.Error != nil:
			return nil, fmt.Errorf("embedding API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
