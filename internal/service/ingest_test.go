package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/courtside/internal/chunker"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/repository"
	"github.com/timmy/courtside/internal/search"
)

func TestIngestCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "what a rally from sinner"
	h.fetcher.titles["abc123"] = "Carlos Alcaraz vs Jannik Sinner | Wimbledon 2024"

	res := h.ingest.Ingest(ctx, "abc123", "")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.ItemID)
	assert.Empty(t, res.ChunkFailures)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, item.Status)
	assert.Equal(t, "Carlos Alcaraz vs Jannik Sinner | Wimbledon 2024", item.Title)
	assert.Equal(t, domain.StringArray{"Carlos Alcaraz", "Jannik Sinner"}, item.Players)
	assert.Equal(t, "Wimbledon", item.Tournament)

	raw, err := h.artifacts.Get(ctx, "abc123", domain.VariantRaw)
	require.NoError(t, err)
	assert.Equal(t, "what a rally from sinner", string(raw))
	clean, err := h.artifacts.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "WHAT A RALLY FROM SINNER", string(clean))
}

func TestIngestTitleFallbackAndHint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "text"
	h.fetcher.transcripts["def456"] = "text"

	h.ingest.Ingest(ctx, "abc123", "")
	h.ingest.Ingest(ctx, "def456", "  Swiatek - Gauff  ")

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Unknown Title (abc123)", item.Title)

	item, err = h.records.GetByIdentifier(ctx, "def456")
	require.NoError(t, err)
	assert.Equal(t, "Swiatek - Gauff", item.Title)
	assert.Equal(t, domain.StringArray{"Swiatek", "Gauff"}, item.Players)
}

func TestIngestFetchFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "not found", res.Error)
	var fe *domain.FetchError
	assert.ErrorAs(t, res.Err, &fe)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, item.Status)
	assert.Equal(t, "not found", item.ErrorMessage)

	assert.False(t, h.exists(t, "abc123", domain.VariantRaw))
	assert.False(t, h.exists(t, "abc123", domain.VariantClean))
}

func TestIngestEmptyTranscriptFails(t *testing.T) {
	h := newHarness(t)
	h.fetcher.transcripts["abc123"] = "  \n "

	res := h.ingest.Ingest(context.Background(), "abc123", "")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, h.exists(t, "abc123", domain.VariantRaw))
}

func TestIngestStorageFailureRecordsMessage(t *testing.T) {
	h := newHarness(t, withArtifacts(func(a ArtifactStore) ArtifactStore {
		return &flakyArtifacts{ArtifactStore: a, failVariant: domain.VariantClean, err: errors.New("disk full")}
	}))
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "some words"

	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	var se *domain.StorageError
	assert.ErrorAs(t, res.Err, &se)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, item.Status)
	assert.Equal(t, "disk full", item.ErrorMessage)
	assert.True(t, h.exists(t, "abc123", domain.VariantRaw))
}

func TestIngestDegradedStillCompletes(t *testing.T) {
	broken := chunker.TransformerFunc(func(context.Context, chunker.TransformRequest) (string, error) {
		return "", errors.New("rate limited")
	})
	h := newHarness(t, withTransformer(broken))
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "keep me verbatim"

	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.True(t, res.Succeeded())
	require.Len(t, res.ChunkFailures, 1)
	assert.Equal(t, 0, res.ChunkFailures[0].Index)
	assert.Equal(t, "rate limited", res.ChunkFailures[0].Error)

	clean, err := h.artifacts.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "keep me verbatim", string(clean))

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, item.Status)
}

func TestIngestLongTranscriptIsChunked(t *testing.T) {
	var parts []chunker.TransformRequest
	record := chunker.TransformerFunc(func(_ context.Context, req chunker.TransformRequest) (string, error) {
		parts = append(parts, req)
		return strings.ToUpper(req.Text), nil
	})
	h := newHarness(t, withTransformer(record))
	h.fetcher.transcripts["abc123"] = strings.Repeat("forehand ", 2300)

	res := h.ingest.Ingest(context.Background(), "abc123", "")
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Chunks)
	require.Len(t, parts, 3)
	for i, p := range parts {
		assert.Equal(t, i+1, p.Part)
		assert.Equal(t, 3, p.Total)
	}
}

func TestIngestRerunsCompletedItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "first pass"
	require.Equal(t, OutcomeCompleted, h.ingest.Ingest(ctx, "abc123", "").Outcome)

	h.fetcher.transcripts["abc123"] = "second pass"
	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Len(t, h.fetcher.calls, 2)

	clean, err := h.artifacts.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "SECOND PASS", string(clean))

	items, total, err := h.records.Query(ctx, repository.WorkItemQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}

func TestIngestRejectsItemAlreadyProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "abc123", domain.StatusProcessing)
	h.fetcher.transcripts["abc123"] = "text"

	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrInvalidTransition)
	assert.Empty(t, h.fetcher.calls)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, item.Status)
}

func TestIngestRetriesFailedItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.Equal(t, OutcomeFailed, h.ingest.Ingest(ctx, "abc123", "").Outcome)

	h.fetcher.transcripts["abc123"] = "second time lucky"
	res := h.ingest.Ingest(ctx, "abc123", "")
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, item.Status)
	assert.Empty(t, item.ErrorMessage)
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t, withWorkers(2))
	h.fetcher.transcripts["one"] = "first"
	h.fetcher.transcripts["three"] = "third"

	batch := h.ingest.IngestBatch(context.Background(), []string{"one", "two", "three"})
	require.Len(t, batch.Results, 3)
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	assert.Equal(t, "one", batch.Results[0].VideoID)
	assert.Equal(t, OutcomeCompleted, batch.Results[0].Outcome)
	assert.Equal(t, "two", batch.Results[1].VideoID)
	assert.Equal(t, OutcomeFailed, batch.Results[1].Outcome)
	assert.Equal(t, "three", batch.Results[2].VideoID)
	assert.Equal(t, OutcomeCompleted, batch.Results[2].Outcome)
}

func TestIngestBatchStopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := h.ingest.IngestBatch(ctx, []string{"one", "two"})
	assert.True(t, batch.Cancelled)
	assert.Equal(t, 0, batch.Succeeded)
	for _, r := range batch.Results {
		assert.Equal(t, OutcomeSkipped, r.Outcome)
	}
	assert.Empty(t, h.fetcher.calls)
}

func TestIngestBatchSkipsItemQueuedBehindCancellation(t *testing.T) {
	h := newHarness(t, withWorkers(1))
	h.fetcher.transcripts["one"] = "first"
	h.fetcher.transcripts["two"] = "second"

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	h.fetcher.gate = func(id string) {
		if id == "one" {
			close(started)
			<-release
		}
	}

	done := make(chan *BatchResult)
	go func() { done <- h.ingest.IngestBatch(ctx, []string{"one", "two"}) }()

	<-started
	cancel()
	close(release)
	batch := <-done

	assert.True(t, batch.Cancelled)
	assert.Equal(t, OutcomeCompleted, batch.Results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, batch.Results[1].Outcome)
	assert.Equal(t, []string{"one"}, h.fetcher.calls)
}

func TestIngestInputPlaylistRecordsJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.playlists["PLabcdefghijk"] = []string{"one", "two"}
	h.fetcher.transcripts["one"] = "first"

	batch, err := h.ingest.IngestInput(ctx, "https://www.youtube.com/playlist?list=PLabcdefghijk", "")
	require.NoError(t, err)
	assert.Equal(t, domain.JobKindPlaylist, batch.Kind)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	job, err := h.jobs.GetByID(ctx, batch.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, 1, job.FailedItems)
	assert.Contains(t, job.ErrorLog, "two: not found")
}

func TestIngestInputVideoURL(t *testing.T) {
	h := newHarness(t)
	h.fetcher.transcripts["abc123"] = "text"

	batch, err := h.ingest.IngestInput(context.Background(), "https://youtu.be/abc123", "Final")
	require.NoError(t, err)
	assert.Equal(t, domain.JobKindVideo, batch.Kind)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "abc123", batch.Results[0].VideoID)
	assert.Equal(t, "Final", batch.Results[0].Title)
}

func TestIngestInputRejectsBlank(t *testing.T) {
	h := newHarness(t)
	_, err := h.ingest.IngestInput(context.Background(), "   ", "")
	assert.Error(t, err)
}

func TestReprocess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "old"
	require.Equal(t, OutcomeCompleted, h.ingest.Ingest(ctx, "abc123", "").Outcome)

	h.fetcher.transcripts["abc123"] = "new words"
	out, err := h.ingest.Reprocess(ctx, "abc123", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.JobToken, "reprocess_abc123_"))
	assert.Equal(t, domain.StatusProcessing, out.Status)
	assert.Nil(t, out.Run)

	h.ingest.Wait()

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, item.Status)
	clean, err := h.artifacts.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "NEW WORDS", string(clean))

	job, err := h.jobs.GetByID(ctx, out.JobToken)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	// The item is free again for a plain ingest.
	assert.Equal(t, OutcomeCompleted, h.ingest.Ingest(ctx, "abc123", "").Outcome)
}

func TestReprocessRequiresFailedOrCompleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "abc123", domain.StatusPending)

	_, err := h.ingest.Reprocess(ctx, "abc123", false)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.ingest.Reprocess(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReprocessRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.transcripts["abc123"] = "old"
	require.Equal(t, OutcomeCompleted, h.ingest.Ingest(ctx, "abc123", "").Outcome)

	h.fetcher.transcripts["abc123"] = "new words"
	out, err := h.ingest.Reprocess(ctx, "abc123", true)
	require.NoError(t, err)
	require.NotNil(t, out.Run)
	assert.Equal(t, OutcomeCompleted, out.Run.Outcome)
	assert.Equal(t, domain.StatusCompleted, out.Status)

	clean, err := h.artifacts.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "NEW WORDS", string(clean))

	job, err := h.jobs.GetByID(ctx, out.JobToken)
	require.NoError(t, err)
	assert.Equal(t, domain.JobKindReprocess, job.Kind)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestIndex(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	idx, err := search.NewMemBleveIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	h.ingest.index = idx
	h.catalog.index = idx

	h.fetcher.transcripts["abc123"] = "a brilliant drop shot wins the set"
	h.fetcher.titles["abc123"] = "Alcaraz vs Sinner"
	require.Equal(t, OutcomeCompleted, h.ingest.Ingest(ctx, "abc123", "").Outcome)

	doc, err := h.ingest.Index(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", doc.ParentID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", doc.URL)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, item.Indexed)
	assert.Equal(t, domain.StatusCompleted, item.Status)

	hits, err := h.catalog.Search(ctx, "drop shot", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "abc123", hits[0].ParentID)
}

func TestIndexWithoutCleanArtifact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	idx, err := search.NewMemBleveIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	h.ingest.index = idx

	h.seed(t, "abc123", domain.StatusCompleted)
	require.NoError(t, h.records.SetIndexed(ctx, "abc123", true))

	_, err = h.ingest.Index(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	item, err := h.records.GetByIdentifier(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, item.Indexed)
	assert.Equal(t, domain.StatusCompleted, item.Status)
}

func TestIndexUnavailable(t *testing.T) {
	h := newHarness(t)
	_, err := h.ingest.Index(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
