package chunker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxSourceBytes is the largest transcript cleaned in a single call.
	DefaultMaxSourceBytes = 12000

	// DefaultMaxChunkBytes is the chunk size used for longer transcripts.
	DefaultMaxChunkBytes = 8000

	// DefaultChunkDelay is the pause between consecutive chunk calls.
	DefaultChunkDelay = time.Second

	// ParagraphSeparator joins reassembled chunks.
	ParagraphSeparator = "\n\n"
)

// errEmptyOutput is reported when the transformer returns only whitespace.
var errEmptyOutput = errors.New("transformer returned empty text")

// TransformRequest is one call to a Transformer.
// Part and Total are 1-based positions; both are zero when the whole document is sent at once.
type TransformRequest struct {
	Text  string
	Title string
	Part  int
	Total int
}

// Positioned reports whether the request is one part of a chunked document.
func (r TransformRequest) Positioned() bool {
	return r.Total > 0
}

// Transformer rewrites a piece of transcript text. Implementations must be
// free of side effects so a chunk can be retried.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (string, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, req TransformRequest) (string, error)

// Transform calls f.
func (f TransformerFunc) Transform(ctx context.Context, req TransformRequest) (string, error) {
	return f(ctx, req)
}

// Reassembler drives a Transformer over a document, chunking it when it is too large.
type Reassembler struct {
	transformer    Transformer
	maxSourceBytes int
	maxChunkBytes  int
	chunkDelay     time.Duration
}

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithMaxSourceBytes sets the size above which documents are chunked.
func WithMaxSourceBytes(n int) Option {
	return func(r *Reassembler) {
		if n > 0 {
			r.maxSourceBytes = n
		}
	}
}

// WithMaxChunkBytes sets the maximum chunk size.
func WithMaxChunkBytes(n int) Option {
	return func(r *Reassembler) {
		if n > 0 {
			r.maxChunkBytes = n
		}
	}
}

// WithChunkDelay sets the minimum spacing between chunk calls. Zero disables throttling.
func WithChunkDelay(d time.Duration) Option {
	return func(r *Reassembler) {
		if d >= 0 {
			r.chunkDelay = d
		}
	}
}

// NewReassembler creates a Reassembler around t.
func NewReassembler(t Transformer, opts ...Option) *Reassembler {
	r := &Reassembler{
		transformer:    t,
		maxSourceBytes: DefaultMaxSourceBytes,
		maxChunkBytes:  DefaultMaxChunkBytes,
		chunkDelay:     DefaultChunkDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of TransformDocument.
type Result struct {
	Text     string
	Chunks   int
	Failures []domain.ChunkFailure
}

// Degraded reports whether any part of the document kept its original text.
func (r *Result) Degraded() bool {
	return len(r.Failures) > 0
}

// TransformDocument cleans text. Documents up to maxSourceBytes go through a
// single call; longer ones are split and sent chunk by chunk, sequentially.
// A failed call keeps the original text in its slot, so content is never lost.
func (r *Reassembler) TransformDocument(ctx context.Context, text, title string) *Result {
	if strings.TrimSpace(text) == "" {
		return &Result{Text: text}
	}

	if len(text) <= r.maxSourceBytes {
		out, err := r.call(ctx, TransformRequest{Text: text, Title: title})
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Transcript cleaning failed, keeping original text")
			return &Result{
				Text:     text,
				Chunks:   1,
				Failures: []domain.ChunkFailure{{Index: 0, Error: err.Error()}},
			}
		}
		return &Result{Text: out, Chunks: 1}
	}

	chunks := Split(text, r.maxChunkBytes)
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(chunks),
		logger.FieldSize:  len(text),
	}).Info("Transcript split into chunks")

	var limiter *rate.Limiter
	if r.chunkDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.chunkDelay), 1)
	}

	parts := make([]string, len(chunks))
	var failures []domain.ChunkFailure
	for _, chunk := range chunks {
		parts[chunk.Index] = chunk.Text

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				failures = append(failures, domain.ChunkFailure{Index: chunk.Index, Error: err.Error()})
				continue
			}
		}

		out, err := r.call(ctx, TransformRequest{
			Text:  chunk.Text,
			Title: title,
			Part:  chunk.Index + 1,
			Total: len(chunks),
		})
		if err != nil {
			terr := &domain.TransformError{Index: chunk.Index, Err: err}
			logger.FromContext(ctx).WithField("chunk", chunk.Index).WithError(terr).Warn("Chunk cleaning failed, keeping original text")
			failures = append(failures, domain.ChunkFailure{Index: chunk.Index, Error: err.Error()})
			continue
		}
		parts[chunk.Index] = out
	}

	return &Result{
		Text:     strings.Join(parts, ParagraphSeparator),
		Chunks:   len(chunks),
		Failures: failures,
	}
}

func (r *Reassembler) call(ctx context.Context, req TransformRequest) (string, error) {
	out, err := r.transformer.Transform(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyOutput
	}
	return out, nil
}
