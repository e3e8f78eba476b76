package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransformer upper-cases its input and remembers every request.
type recordingTransformer struct {
	mu       sync.Mutex
	requests []TransformRequest
	failOn   map[int]bool
}

func (r *recordingTransformer) Transform(_ context.Context, req TransformRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.failOn[req.Part] {
		return "", fmt.Errorf("upstream 500 on part %d", req.Part)
	}
	return strings.ToUpper(req.Text), nil
}

func TestTransformDocumentSingleCall(t *testing.T) {
	rt := &recordingTransformer{}
	r := NewReassembler(rt, WithChunkDelay(0))

	res := r.TransformDocument(context.Background(), "game set match", "Final")

	assert.Equal(t, "GAME SET MATCH", res.Text)
	assert.Equal(t, 1, res.Chunks)
	assert.False(t, res.Degraded())
	require.Len(t, rt.requests, 1)
	assert.False(t, rt.requests[0].Positioned())
	assert.Equal(t, "Final", rt.requests[0].Title)
}

func TestTransformDocumentSingleCallFailureKeepsOriginal(t *testing.T) {
	failing := TransformerFunc(func(context.Context, TransformRequest) (string, error) {
		return "", errors.New("timeout")
	})
	res := NewReassembler(failing, WithChunkDelay(0)).TransformDocument(context.Background(), "deuce", "")

	assert.Equal(t, "deuce", res.Text)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Index)
	assert.Equal(t, "timeout", res.Failures[0].Error)
}

func TestTransformDocumentEmptyOutputCountsAsFailure(t *testing.T) {
	blank := TransformerFunc(func(context.Context, TransformRequest) (string, error) {
		return "   ", nil
	})
	res := NewReassembler(blank, WithChunkDelay(0)).TransformDocument(context.Background(), "ace", "")
	assert.Equal(t, "ace", res.Text)
	assert.True(t, res.Degraded())
}

func TestTransformDocumentSkipsBlankInput(t *testing.T) {
	rt := &recordingTransformer{}
	res := NewReassembler(rt).TransformDocument(context.Background(), " \n", "")
	assert.Empty(t, rt.requests)
	assert.Equal(t, 0, res.Chunks)
}

func TestTransformDocumentChunked(t *testing.T) {
	rt := &recordingTransformer{}
	r := NewReassembler(rt, WithMaxSourceBytes(20), WithMaxChunkBytes(9), WithChunkDelay(0))

	res := r.TransformDocument(context.Background(), "abcd efgh ijkl mnop qrst", "Semi")

	assert.Equal(t, "ABCD EFGH\n\nIJKL MNOP\n\nQRST", res.Text)
	assert.Equal(t, 3, res.Chunks)
	assert.Empty(t, res.Failures)
	require.Len(t, rt.requests, 3)
	for i, req := range rt.requests {
		assert.Equal(t, i+1, req.Part)
		assert.Equal(t, 3, req.Total)
		assert.Equal(t, "Semi", req.Title)
	}
}

func TestTransformDocumentChunkFailureKeepsOriginalChunk(t *testing.T) {
	rt := &recordingTransformer{failOn: map[int]bool{2: true}}
	r := NewReassembler(rt, WithMaxSourceBytes(20), WithMaxChunkBytes(9), WithChunkDelay(0))

	res := r.TransformDocument(context.Background(), "abcd efgh ijkl mnop qrst", "")

	assert.Equal(t, "ABCD EFGH\n\nijkl mnop\n\nQRST", res.Text)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Error, "upstream 500")
	assert.Len(t, rt.requests, 3)
}

func TestTransformDocumentLargeTranscriptThreeChunks(t *testing.T) {
	rt := &recordingTransformer{}
	text := words(2000, "forehand!")

	res := NewReassembler(rt, WithChunkDelay(0)).TransformDocument(context.Background(), text, "")

	assert.Equal(t, 3, res.Chunks)
	assert.Len(t, rt.requests, 3)
	assert.Equal(t, 2, strings.Count(res.Text, ParagraphSeparator))
	assert.Equal(t, strings.ToUpper(words(2000, "forehand!")), strings.ReplaceAll(res.Text, ParagraphSeparator, " "))
}

func TestTransformDocumentSpacesChunkCalls(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	tr := TransformerFunc(func(_ context.Context, req TransformRequest) (string, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return req.Text, nil
	})
	delay := 40 * time.Millisecond
	r := NewReassembler(tr, WithMaxSourceBytes(5), WithMaxChunkBytes(4), WithChunkDelay(delay))

	r.TransformDocument(context.Background(), "aaaa bbbb cccc", "")

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), delay-5*time.Millisecond)
	}
}

func TestTransformDocumentCancelledWaitKeepsOriginal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := TransformerFunc(func(_ context.Context, req TransformRequest) (string, error) {
		cancel()
		return strings.ToUpper(req.Text), nil
	})
	r := NewReassembler(tr, WithMaxSourceBytes(5), WithMaxChunkBytes(4), WithChunkDelay(time.Hour))

	res := r.TransformDocument(ctx, "aaaa bbbb", "")

	assert.Equal(t, "AAAA\n\nbbbb", res.Text)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
}
