package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/mapping"
	_ "github.com/blevesearch/bleve/search/highlight/highlighter/html"
	"github.com/timmy/courtside/internal/domain"
)

const (
	fieldParentID = "parent_id"
	fieldTitle    = "title"
	fieldContent  = "content"
	fieldURL      = "url"

	// The html highlighter marks terms with <mark>; results use <strong>.
	bleveMarkOpen  = "<mark>"
	bleveMarkClose = "</mark>"
)

// BleveIndex is a full-text Index backed by bleve.
type BleveIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewBleveIndex opens the index at path, creating it when missing.
func NewBleveIndex(path string) (*BleveIndex, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index at %s: %w", path, err)
	}
	return &BleveIndex{index: idx}, nil
}

// NewMemBleveIndex creates a throwaway in-memory index.
func NewMemBleveIndex() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: idx}, nil
}

func newIndexMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	urlField := bleve.NewTextFieldMapping()
	urlField.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldParentID, keywordField)
	doc.AddFieldMappingsAt(fieldTitle, newTextField())
	doc.AddFieldMappingsAt(fieldContent, newTextField())
	doc.AddFieldMappingsAt(fieldURL, urlField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

func newTextField() *mapping.FieldMapping {
	f := bleve.NewTextFieldMapping()
	f.Analyzer = standard.Name
	f.Store = true
	f.IncludeTermVectors = true
	return f
}

// Upsert indexes doc, replacing any document with the same ID.
func (b *BleveIndex) Upsert(_ context.Context, doc *domain.IndexDocument) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Index(doc.ID, map[string]interface{}{
		fieldParentID: doc.ParentID,
		fieldTitle:    doc.Title,
		fieldContent:  doc.Content,
		fieldURL:      doc.URL,
	})
}

// Delete removes the document for id.
func (b *BleveIndex) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Delete(id)
}

// Query runs a match query over title and content.
func (b *BleveIndex) Query(_ context.Context, text string, topN int) ([]domain.SearchHit, error) {
	if strings.TrimSpace(text) == "" {
		return []domain.SearchHit{}, nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	content := bleve.NewMatchQuery(text)
	content.SetField(fieldContent)
	title := bleve.NewMatchQuery(text)
	title.SetField(fieldTitle)
	title.SetBoost(2)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(content, title), topN, 0, false)
	req.Fields = []string{fieldParentID, fieldTitle, fieldURL}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField(fieldContent)

	b.mu.RLock()
	res, err := b.index.Search(req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := domain.SearchHit{
			ID:       h.ID,
			ParentID: stringField(h.Fields, fieldParentID),
			Title:    stringField(h.Fields, fieldTitle),
			URL:      stringField(h.Fields, fieldURL),
			Score:    h.Score,
		}
		for _, frag := range h.Fragments[fieldContent] {
			frag = strings.ReplaceAll(frag, bleveMarkOpen, highlightOpen)
			frag = strings.ReplaceAll(frag, bleveMarkClose, highlightClose)
			hit.Highlights = append(hit.Highlights, frag)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// Count returns the number of indexed documents.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}
