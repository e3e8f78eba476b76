package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/repository"
	"github.com/timmy/courtside/internal/search"
	"github.com/timmy/courtside/internal/source"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CatalogService answers read and maintenance requests over work items and
// their artifacts. Reported statuses are always reconciled against storage.
type CatalogService struct {
	records    RecordStore
	artifacts  ArtifactStore
	index      search.Index
	reconciler *Reconciler
}

// NewCatalogService creates a CatalogService. index may be nil.
func NewCatalogService(records RecordStore, artifacts ArtifactStore, index search.Index) *CatalogService {
	return &CatalogService{
		records:    records,
		artifacts:  artifacts,
		index:      index,
		reconciler: NewReconciler(artifacts),
	}
}

// ItemView is a work item as a reader should see it.
type ItemView struct {
	domain.WorkItem
	EffectiveStatus  domain.Status `json:"effective_status"`
	HasRaw           bool          `json:"has_raw"`
	HasClean         bool          `json:"has_clean"`
	TranscriptLength int64         `json:"transcript_length"`
	URL              string        `json:"url"`
	ThumbnailURL     string        `json:"thumbnail_url"`
	Content          string        `json:"content,omitempty"`
}

func newItemView(item domain.WorkItem, rec Reconciliation) ItemView {
	return ItemView{
		WorkItem:        item,
		EffectiveStatus: rec.Status,
		HasRaw:          rec.HasRaw,
		HasClean:        rec.HasClean,
		URL:             domain.WatchURL(item.Identifier),
		ThumbnailURL:    domain.ThumbnailURL(item.Identifier),
	}
}

// ListOptions filters and pages a listing. Status filters on the stored status.
type ListOptions struct {
	Status *domain.Status
	Text   string
	Limit  int
	Offset int
}

// ListPage is one page of work items.
type ListPage struct {
	Items   []ItemView `json:"items"`
	Total   int64      `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	HasMore bool       `json:"has_more"`
}

// List returns work items newest first with reconciled statuses and transcript sizes.
// A non-empty Text matches title or identifier substrings.
func (c *CatalogService) List(ctx context.Context, opts ListOptions) (*ListPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	items, total, err := c.records.Query(ctx, repository.WorkItemQuery{
		Status: opts.Status,
		Text:   opts.Text,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	sizes, err := c.artifactSizes(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ItemView, 0, len(items))
	for i := range items {
		sz := sizes.get(items[i].Identifier)
		rec := Observe(ctx, &items[i], sz.raw >= 0, sz.clean >= 0)
		view := newItemView(items[i], rec)
		view.TranscriptLength = sz.length()
		views = append(views, view)
	}

	return &ListPage{
		Items:   views,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(items)) < total,
	}, nil
}

// artifactSize holds byte sizes per variant; -1 means absent.
type artifactSize struct {
	raw, clean int64
}

func (a artifactSize) length() int64 {
	if a.clean >= 0 {
		return a.clean
	}
	if a.raw >= 0 {
		return a.raw
	}
	return 0
}

type sizeMap map[string]artifactSize

func (m sizeMap) get(id string) artifactSize {
	if s, ok := m[id]; ok {
		return s
	}
	return artifactSize{raw: -1, clean: -1}
}

func (c *CatalogService) artifactSizes(ctx context.Context) (sizeMap, error) {
	infos, err := c.artifacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	sizes := make(sizeMap)
	for _, info := range infos {
		s := sizes.get(info.Identifier)
		switch info.Variant {
		case domain.VariantRaw:
			s.raw = info.Size
		case domain.VariantClean:
			s.clean = info.Size
		}
		sizes[info.Identifier] = s
	}
	return sizes, nil
}

// Get returns one work item with its reconciled status, and the clean
// transcript when includeContent is set.
func (c *CatalogService) Get(ctx context.Context, videoID string, includeContent bool) (*ItemView, error) {
	item, err := c.records.GetByIdentifier(ctx, videoID)
	if err != nil {
		return nil, err
	}

	view := newItemView(*item, c.reconciler.Reconcile(ctx, item))
	if includeContent && view.HasClean {
		content, err := c.artifacts.Get(ctx, videoID, domain.VariantClean)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		view.Content = string(content)
		view.TranscriptLength = int64(len(content))
	}
	return &view, nil
}

// TranscriptContent reads one artifact as text.
func (c *CatalogService) TranscriptContent(ctx context.Context, videoID string, variant domain.Variant) (string, error) {
	data, err := c.artifacts.Get(ctx, videoID, variant)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListTranscripts groups stored artifacts per identifier, sorted by identifier.
// Titles come from the record store when a record exists.
func (c *CatalogService) ListTranscripts(ctx context.Context) ([]domain.TranscriptSummary, error) {
	sizes, err := c.artifactSizes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TranscriptSummary, 0, len(sizes))
	for id, sz := range sizes {
		summary := domain.TranscriptSummary{
			Identifier: id,
			HasRaw:     sz.raw >= 0,
			HasClean:   sz.clean >= 0,
			RawSize:    max(sz.raw, 0),
			CleanSize:  max(sz.clean, 0),
		}
		if item, err := c.records.GetByIdentifier(ctx, id); err == nil {
			summary.Title = item.Title
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// DeleteResult lists what Delete removed.
type DeleteResult struct {
	VideoID          string   `json:"video_id"`
	DeletedArtifacts []string `json:"deleted_artifacts"`
}

// Delete removes both artifacts and then the record. Missing artifacts are
// skipped. The search document is kept; re-indexing after a new ingest replaces it.
func (c *CatalogService) Delete(ctx context.Context, videoID string) (*DeleteResult, error) {
	ctx = logger.SetVideoID(ctx, videoID)
	if _, err := c.records.GetByIdentifier(ctx, videoID); err != nil {
		return nil, err
	}

	res := &DeleteResult{VideoID: videoID, DeletedArtifacts: []string{}}
	for _, variant := range []domain.Variant{domain.VariantRaw, domain.VariantClean} {
		ok, err := c.artifacts.Exists(ctx, videoID, variant)
		if err != nil {
			return nil, &domain.StorageError{Op: "check " + string(variant), Err: err}
		}
		if !ok {
			continue
		}
		if err := c.artifacts.Delete(ctx, videoID, variant); err != nil {
			return nil, &domain.StorageError{Op: "delete " + string(variant), Err: err}
		}
		res.DeletedArtifacts = append(res.DeletedArtifacts, domain.ArtifactKey(videoID, variant))
	}

	if err := c.records.Delete(ctx, videoID); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithField(logger.FieldCount, len(res.DeletedArtifacts)).Info("Work item deleted")
	return res, nil
}

// Stats summarizes the record store.
type Stats struct {
	Total       int64   `json:"total"`
	Pending     int64   `json:"pending"`
	Processing  int64   `json:"processing"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	Indexed     int64   `json:"indexed"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats counts records per stored status. SuccessRate is completed/total as a
// percentage rounded to two decimals.
func (c *CatalogService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := c.records.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	indexed, err := c.records.CountIndexed(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Pending:    counts[domain.StatusPending],
		Processing: counts[domain.StatusProcessing],
		Completed:  counts[domain.StatusCompleted],
		Failed:     counts[domain.StatusFailed],
		Indexed:    indexed,
	}
	st.Total = st.Pending + st.Processing + st.Completed + st.Failed
	if st.Total > 0 {
		st.SuccessRate = math.Round(float64(st.Completed)/float64(st.Total)*10000) / 100
	}
	return st, nil
}

// MigrateResult summarizes a Migrate run.
type MigrateResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Migrate creates records for raw artifacts that have none: COMPLETED when a
// clean artifact exists, PENDING otherwise. Existing records are left alone.
func (c *CatalogService) Migrate(ctx context.Context) (*MigrateResult, error) {
	sizes, err := c.artifactSizes(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sizes))
	for id, sz := range sizes {
		if sz.raw >= 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	res := &MigrateResult{Created: []string{}, Skipped: []string{}, Errors: []string{}}
	for _, id := range ids {
		status := domain.StatusPending
		if sizes[id].clean >= 0 {
			status = domain.StatusCompleted
		}
		title := source.FallbackTitle(id)
		_, created, err := c.records.CreateIfAbsent(ctx, &domain.WorkItem{
			Identifier: id,
			Title:      title,
			Players:    domain.StringArray{},
			Status:     status,
		})
		switch {
		case err != nil:
			res.Errors = append(res.Errors, id+": "+err.Error())
		case created:
			res.Created = append(res.Created, id)
		default:
			res.Skipped = append(res.Skipped, id)
		}
	}

	logger.With(logger.Fields{
		"created": len(res.Created),
		"skipped": len(res.Skipped),
		"errors":  len(res.Errors),
	}).Info(ctx, "Artifact migration finished")
	return res, nil
}

// Search queries the search index. topN <= 0 uses search.DefaultTopN.
func (c *CatalogService) Search(ctx context.Context, query string, topN int) ([]domain.SearchHit, error) {
	if c.index == nil {
		return nil, ErrIndexUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchHit{}, nil
	}
	if topN <= 0 {
		topN = search.DefaultTopN
	}
	hits, err := c.index.Query(ctx, query, topN)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return hits, nil
}
