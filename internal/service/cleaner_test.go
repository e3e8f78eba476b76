package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/courtside/internal/chunker"
)

func TestLLMCleanerTransform(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  Clean text.  "}}]}`))
	}))
	defer srv.Close()

	cleaner := NewLLMCleaner(&CleanerConfig{
		BaseURL:     srv.URL + "/v1/",
		Model:       "gpt-4o-mini",
		APIKey:      "sk-test",
		Temperature: 0.3,
	})

	out, err := cleaner.Transform(context.Background(), chunker.TransformRequest{
		Text: "um clean text", Title: "Final", Part: 2, Total: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Clean text.", out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 4000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "part 2 of 3")
	assert.Contains(t, got.Messages[0].Content, "Final")
	assert.Equal(t, "um clean text", got.Messages[1].Content)
}

func TestLLMCleanerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	cleaner := NewLLMCleaner(&CleanerConfig{BaseURL: srv.URL, Model: "m"})
	_, err := cleaner.Transform(context.Background(), chunker.TransformRequest{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestEmbeddingServiceJinaTask(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2],"index":0}]}`))
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{Provider: "jina", Model: "jina-embeddings-v3", BaseURL: srv.URL, Dimensions: 2})

	vec, err := svc.EmbedQuery(context.Background(), "drop shot")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, "retrieval.query", got.Task)

	_, err = svc.Embed(context.Background(), "passage")
	require.NoError(t, err)
	assert.Equal(t, "retrieval.passage", got.Task)
}

func TestEmbeddingServiceOpenAICompatible(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", BaseURL: srv.URL})
	_, err := svc.Embed(context.Background(), "passage")
	require.NoError(t, err)
	assert.Empty(t, got.Task)
	assert.Equal(t, []string{"passage"}, got.Input)
}

func TestWithCallTimeout(t *testing.T) {
	slow := chunker.TransformerFunc(func(ctx context.Context, _ chunker.TransformRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := WithCallTimeout(slow, 1).Transform(context.Background(), chunker.TransformRequest{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
