// Package search publishes cleaned transcripts to a search backend and queries them.
package search

import (
	"context"

	"github.com/timmy/courtside/internal/domain"
)

// DefaultTopN is the number of hits returned when the caller does not ask for a count.
const DefaultTopN = 3

// Index is a search backend.
type Index interface {
	// Upsert inserts or replaces the document with doc.ID.
	Upsert(ctx context.Context, doc *domain.IndexDocument) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// Query returns at most topN hits, best first, with <strong>-tagged excerpts.
	Query(ctx context.Context, text string, topN int) ([]domain.SearchHit, error)

	Close() error
}
