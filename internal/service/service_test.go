package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/courtside/internal/chunker"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/repository"
	"github.com/timmy/courtside/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeFetcher struct {
	mu          sync.Mutex
	transcripts map[string]string
	errs        map[string]error
	titles      map[string]string
	playlists   map[string][]string
	calls       []string
	// gate, when set, runs before each fetch outside the lock.
	gate func(id string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		transcripts: map[string]string{},
		errs:        map[string]error{},
		titles:      map[string]string{},
		playlists:   map[string][]string{},
	}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchTranscript(_ context.Context, id string) (string, error) {
	if f.gate != nil {
		f.gate(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return "", err
	}
	text, ok := f.transcripts[id]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

func (f *fakeFetcher) Title(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if title, ok := f.titles[id]; ok {
		return title, nil
	}
	return "", domain.ErrNotFound
}

func (f *fakeFetcher) PlaylistVideoIDs(_ context.Context, id string, max int) ([]string, error) {
	ids, ok := f.playlists[id]
	if !ok {
		return nil, errors.New("playlist not found")
	}
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// upper cleans text by upper-casing it.
var upper = chunker.TransformerFunc(func(_ context.Context, req chunker.TransformRequest) (string, error) {
	return strings.ToUpper(req.Text), nil
})

// flakyArtifacts fails Put for one variant.
type flakyArtifacts struct {
	ArtifactStore
	failVariant domain.Variant
	err         error
}

func (f *flakyArtifacts) Put(ctx context.Context, id string, v domain.Variant, data []byte) error {
	if v == f.failVariant {
		return f.err
	}
	return f.ArtifactStore.Put(ctx, id, v, data)
}

type harness struct {
	records   *repository.WorkItemRepository
	jobs      *repository.IngestJobRepository
	artifacts ArtifactStore
	fetcher   *fakeFetcher
	ingest    *IngestService
	catalog   *CatalogService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return db
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	transformer chunker.Transformer
	wrap        func(ArtifactStore) ArtifactStore
	workers     int
}

func withTransformer(t chunker.Transformer) harnessOption {
	return func(c *harnessConfig) { c.transformer = t }
}

func withArtifacts(wrap func(ArtifactStore) ArtifactStore) harnessOption {
	return func(c *harnessConfig) { c.wrap = wrap }
}

func withWorkers(n int) harnessOption {
	return func(c *harnessConfig) { c.workers = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := &harnessConfig{transformer: upper, workers: 1}
	for _, opt := range opts {
		opt(cfg)
	}

	db := newTestDB(t)
	files, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	var artifacts ArtifactStore = storage.NewArtifactStore(files)
	if cfg.wrap != nil {
		artifacts = cfg.wrap(artifacts)
	}

	h := &harness{
		records:   repository.NewWorkItemRepository(db),
		jobs:      repository.NewIngestJobRepository(db),
		artifacts: artifacts,
		fetcher:   newFakeFetcher(),
	}
	reassembler := chunker.NewReassembler(cfg.transformer, chunker.WithChunkDelay(0))
	h.ingest = NewIngestService(h.records, h.jobs, h.artifacts, h.fetcher, reassembler, nil, &IngestConfig{
		StageTimeout: 5 * time.Second,
		BatchWorkers: cfg.workers,
	})
	h.catalog = NewCatalogService(h.records, h.artifacts, nil)
	return h
}

func (h *harness) seed(t *testing.T, id string, status domain.Status) *domain.WorkItem {
	t.Helper()
	item, created, err := h.records.CreateIfAbsent(context.Background(), &domain.WorkItem{
		Identifier: id,
		Title:      "Seeded " + id,
		Status:     status,
	})
	require.NoError(t, err)
	require.True(t, created)
	return item
}

func (h *harness) put(t *testing.T, id string, variant domain.Variant, text string) {
	t.Helper()
	require.NoError(t, h.artifacts.Put(context.Background(), id, variant, []byte(text)))
}

func (h *harness) exists(t *testing.T, id string, variant domain.Variant) bool {
	t.Helper()
	ok, err := h.artifacts.Exists(context.Background(), id, variant)
	require.NoError(t, err)
	return ok
}
