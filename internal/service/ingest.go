package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/timmy/courtside/internal/chunker"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/metrics"
	"github.com/timmy/courtside/internal/search"
	"github.com/timmy/courtside/internal/source"
)

// Outcome summarizes one ingest run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSkipped   Outcome = "skipped"
)

// Pipeline stages, used as log and metric labels.
const (
	StageResolve    = "resolve"
	StageFetch      = "fetch"
	StageStoreRaw   = "store_raw"
	StageTransform  = "transform"
	StageStoreClean = "store_clean"
	StageFinalize   = "finalize"
	StageIndex      = "index"
)

const defaultStageTimeout = 2 * time.Minute

var errEmptyTranscript = errors.New("transcript is empty")

// JobStore records ingest and reprocess invocations.
type JobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	Finish(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	ListRecent(ctx context.Context, limit int) ([]domain.IngestJob, error)
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	StageTimeout      time.Duration
	BatchWorkers      int
	MaxPlaylistVideos int
}

// IngestService runs the transcript pipeline:
// resolve -> start -> fetch -> store raw -> transform -> store clean -> succeed.
// Indexing is a separate call.
type IngestService struct {
	records     RecordStore
	jobs        JobStore
	artifacts   ArtifactStore
	fetcher     source.Fetcher
	reassembler *chunker.Reassembler
	index       search.Index
	machine     *StateMachine

	stageTimeout time.Duration
	workers      int
	maxPlaylist  int

	background sync.WaitGroup
}

// NewIngestService creates a new ingest service. jobs and index may be nil.
func NewIngestService(
	records RecordStore,
	jobs JobStore,
	artifacts ArtifactStore,
	fetcher source.Fetcher,
	reassembler *chunker.Reassembler,
	index search.Index,
	cfg *IngestConfig,
) *IngestService {
	s := &IngestService{
		records:      records,
		jobs:         jobs,
		artifacts:    artifacts,
		fetcher:      fetcher,
		reassembler:  reassembler,
		index:        index,
		machine:      NewStateMachine(records),
		stageTimeout: defaultStageTimeout,
		workers:      1,
		maxPlaylist:  10,
	}
	if cfg != nil {
		if cfg.StageTimeout > 0 {
			s.stageTimeout = cfg.StageTimeout
		}
		if cfg.BatchWorkers > 0 {
			s.workers = cfg.BatchWorkers
		}
		if cfg.MaxPlaylistVideos > 0 {
			s.maxPlaylist = cfg.MaxPlaylistVideos
		}
	}
	return s
}

// StateMachine exposes the transition functions used by the service.
func (s *IngestService) StateMachine() *StateMachine {
	return s.machine
}

// IngestResult is the outcome of one identifier.
type IngestResult struct {
	VideoID       string                `json:"video_id"`
	ItemID        string                `json:"item_id,omitempty"`
	Title         string                `json:"title,omitempty"`
	Status        domain.Status         `json:"status,omitempty"`
	Outcome       Outcome               `json:"outcome"`
	Error         string                `json:"error,omitempty"`
	Chunks        int                   `json:"chunks,omitempty"`
	ChunkFailures []domain.ChunkFailure `json:"chunk_failures,omitempty"`
	RawBytes      int                   `json:"raw_bytes,omitempty"`
	CleanBytes    int                   `json:"clean_bytes,omitempty"`

	Err error `json:"-"`
}

// Succeeded reports whether a clean artifact was produced and the item completed.
func (r *IngestResult) Succeeded() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeDegraded
}

// Ingest runs the pipeline for one identifier. Existing items are re-run
// unless another run holds them in PROCESSING. Every failure after the item
// is claimed is written to the record through Fail before returning.
func (s *IngestService) Ingest(ctx context.Context, videoID, titleHint string) *IngestResult {
	ctx = logger.SetVideoID(ctx, videoID)
	res := &IngestResult{VideoID: videoID}

	start := time.Now()
	if _, err := s.resolve(logger.SetStage(ctx, StageResolve), videoID, titleHint); err != nil {
		return s.reject(ctx, res, OutcomeFailed, err)
	}

	item, err := s.machine.Claim(ctx, videoID)
	observeStage(StageResolve, start)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return s.reject(ctx, res, OutcomeRejected, err)
		}
		return s.reject(ctx, res, OutcomeFailed, err)
	}

	return s.run(ctx, item, res)
}

// resolve returns the existing record or creates a PENDING one with derived
// title and match metadata.
func (s *IngestService) resolve(ctx context.Context, videoID, titleHint string) (*domain.WorkItem, error) {
	titleHint = strings.TrimSpace(titleHint)

	existing, err := s.records.GetByIdentifier(ctx, videoID)
	if err == nil {
		if titleHint != "" && existing.Title == "" {
			if err := s.records.FillTitle(ctx, videoID, titleHint); err != nil {
				return nil, err
			}
			existing.Title = titleHint
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	title := titleHint
	if title == "" {
		title = s.lookupTitle(ctx, videoID)
	}
	item := &domain.WorkItem{
		Identifier: videoID,
		Title:      title,
		Players:    domain.StringArray(source.ExtractPlayers(title)),
		Tournament: source.ExtractTournament(title),
		Status:     domain.StatusPending,
	}
	stored, created, err := s.records.CreateIfAbsent(ctx, item)
	if err != nil {
		return nil, &domain.StorageError{Op: "create record", Err: err}
	}
	if created {
		logger.FromContext(ctx).WithField("title", title).Info("Work item created")
	}
	return stored, nil
}

func (s *IngestService) lookupTitle(ctx context.Context, videoID string) string {
	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	title, err := s.fetcher.Title(ctx, videoID)
	if err != nil || strings.TrimSpace(title) == "" {
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Title lookup failed, using fallback")
		}
		return source.FallbackTitle(videoID)
	}
	return strings.TrimSpace(title)
}

// run executes fetch through succeed for an item already in PROCESSING.
func (s *IngestService) run(ctx context.Context, item *domain.WorkItem, res *IngestResult) *IngestResult {
	res.ItemID = item.ID
	res.Title = item.Title
	id := item.Identifier

	start := time.Now()
	raw, err := s.fetch(logger.SetStage(ctx, StageFetch), id)
	observeStage(StageFetch, start)
	if err != nil {
		return s.abort(ctx, res, StageFetch, err)
	}
	res.RawBytes = len(raw)

	if err := s.store(ctx, StageStoreRaw, id, domain.VariantRaw, raw); err != nil {
		return s.abort(ctx, res, StageStoreRaw, err)
	}

	start = time.Now()
	cleaned := s.reassembler.TransformDocument(logger.SetStage(ctx, StageTransform), raw, item.Title)
	observeStage(StageTransform, start)
	res.Chunks = cleaned.Chunks
	res.ChunkFailures = cleaned.Failures
	res.CleanBytes = len(cleaned.Text)
	if n := len(cleaned.Failures); n > 0 {
		metrics.ChunkFailures.Add(float64(n))
	}

	if err := s.store(ctx, StageStoreClean, id, domain.VariantClean, cleaned.Text); err != nil {
		return s.abort(ctx, res, StageStoreClean, err)
	}

	start = time.Now()
	done, err := s.machine.Succeed(ctx, id)
	observeStage(StageFinalize, start)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Someone else moved the item; their status stands.
			return s.reject(ctx, res, OutcomeFailed, err)
		}
		return s.abort(ctx, res, StageFinalize, err)
	}

	res.Status = done.Status
	res.Outcome = OutcomeCompleted
	if cleaned.Degraded() {
		res.Outcome = OutcomeDegraded
	}
	metrics.IngestTotal.WithLabelValues(string(res.Outcome)).Inc()

	logger.With(logger.Fields{
		"chunks":         res.Chunks,
		"chunk_failures": len(res.ChunkFailures),
		"raw_bytes":      res.RawBytes,
		"clean_bytes":    res.CleanBytes,
	}).Info(ctx, "Transcript ingested (%s)", res.Outcome)
	return res
}

func (s *IngestService) fetch(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	raw, err := s.fetcher.FetchTranscript(ctx, videoID)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			return "", err
		}
		return "", &domain.FetchError{Identifier: videoID, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return "", &domain.FetchError{Identifier: videoID, Err: errEmptyTranscript}
	}
	return raw, nil
}

func (s *IngestService) store(ctx context.Context, stage, videoID string, variant domain.Variant, text string) error {
	start := time.Now()
	defer observeStage(stage, start)

	ctx, cancel := context.WithTimeout(logger.SetStage(ctx, stage), s.stageTimeout)
	defer cancel()

	if err := s.artifacts.Put(ctx, videoID, variant, []byte(text)); err != nil {
		return &domain.StorageError{Op: "put " + string(variant), Err: err}
	}
	return nil
}

// abort records err on the item and returns a failed result.
func (s *IngestService) abort(ctx context.Context, res *IngestResult, stage string, err error) *IngestResult {
	message := err.Error()
	if _, ferr := s.machine.Fail(ctx, res.VideoID, message); ferr != nil {
		logger.FromContext(ctx).WithError(ferr).Error("Failed to record stage failure")
	}

	res.Status = domain.StatusFailed
	res.Outcome = OutcomeFailed
	res.Error = message
	res.Err = err
	metrics.IngestTotal.WithLabelValues(string(OutcomeFailed)).Inc()

	logger.FromContext(ctx).WithField(logger.FieldStage, stage).WithError(err).Error("Ingest stage failed")
	return res
}

// reject returns a result without touching the record.
func (s *IngestService) reject(ctx context.Context, res *IngestResult, outcome Outcome, err error) *IngestResult {
	res.Outcome = outcome
	res.Error = err.Error()
	res.Err = err
	metrics.IngestTotal.WithLabelValues(string(outcome)).Inc()
	logger.FromContext(ctx).WithError(err).Warn("Ingest not started")
	return res
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// BatchResult is the outcome of a multi-identifier run.
type BatchResult struct {
	JobID     string          `json:"job_id,omitempty"`
	Input     string          `json:"input,omitempty"`
	Kind      domain.JobKind  `json:"kind,omitempty"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Cancelled bool            `json:"cancelled,omitempty"`
	Results   []*IngestResult `json:"results"`
}

// IngestBatch ingests each identifier independently on a worker pool.
// Results keep the order of ids. When ctx is cancelled no new identifiers
// are started; runs already in flight finish and the rest are reported as skipped.
func (s *IngestService) IngestBatch(ctx context.Context, ids []string) *BatchResult {
	batch := &BatchResult{Total: len(ids), Results: make([]*IngestResult, len(ids))}
	if len(ids) == 0 {
		return batch
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		for i, id := range ids {
			batch.Results[i] = &IngestResult{VideoID: id, Outcome: OutcomeFailed, Error: err.Error(), Err: err}
		}
		batch.tally()
		return batch
	}
	defer pool.Release()

	// In-flight runs must survive cancellation of the batch.
	runCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id // per-iteration copies for the closure below (go < 1.22 loop semantics)
		if ctx.Err() != nil {
			batch.Results[i] = skipped(id, ctx.Err())
			continue
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			// Submit blocks while the pool is full, so cancellation can land here.
			if err := ctx.Err(); err != nil {
				batch.Results[i] = skipped(id, err)
				return
			}
			batch.Results[i] = s.Ingest(runCtx, id, "")
		}); err != nil {
			wg.Done()
			batch.Results[i] = &IngestResult{VideoID: id, Outcome: OutcomeFailed, Error: err.Error(), Err: err}
		}
	}
	wg.Wait()

	for _, r := range batch.Results {
		if r.Outcome == OutcomeSkipped {
			batch.Cancelled = true
		}
	}
	batch.tally()
	logger.With(logger.Fields{
		logger.FieldCount: batch.Total,
		"succeeded":       batch.Succeeded,
		"failed":          batch.Failed,
	}).Info(ctx, "Batch finished")
	return batch
}

func skipped(id string, err error) *IngestResult {
	return &IngestResult{VideoID: id, Outcome: OutcomeSkipped, Error: err.Error(), Err: err}
}

func (b *BatchResult) tally() {
	b.Succeeded, b.Failed = 0, 0
	for _, r := range b.Results {
		if r.Succeeded() {
			b.Succeeded++
		} else {
			b.Failed++
		}
	}
}

// IngestInput parses a video or playlist reference and ingests everything it
// names, recording the run as a job.
func (s *IngestService) IngestInput(ctx context.Context, input, titleHint string) (*BatchResult, error) {
	parsed, err := source.ParseVideoInput(input)
	if err != nil {
		return nil, err
	}

	job := &domain.IngestJob{ID: "ingest_" + uuid.NewString(), Input: input}
	ctx = logger.SetJobID(ctx, job.ID)

	var batch *BatchResult
	switch parsed.Kind {
	case source.InputPlaylist:
		job.Kind = domain.JobKindPlaylist
		lookupCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
		ids, err := s.fetcher.PlaylistVideoIDs(lookupCtx, parsed.ID, s.maxPlaylist)
		cancel()
		if err != nil {
			return nil, &domain.FetchError{Identifier: parsed.ID, Err: err}
		}
		if len(ids) == 0 {
			return nil, &domain.FetchError{Identifier: parsed.ID, Err: fmt.Errorf("playlist %s has no videos", parsed.ID)}
		}
		s.startJob(ctx, job, len(ids))
		batch = s.IngestBatch(ctx, ids)
	default:
		job.Kind = domain.JobKindVideo
		s.startJob(ctx, job, 1)
		res := s.Ingest(ctx, parsed.ID, titleHint)
		batch = &BatchResult{Total: 1, Results: []*IngestResult{res}}
		batch.tally()
	}

	batch.JobID = job.ID
	batch.Input = input
	batch.Kind = job.Kind
	s.finishJob(ctx, job, batch)
	return batch, nil
}

func (s *IngestService) startJob(ctx context.Context, job *domain.IngestJob, total int) {
	if s.jobs == nil {
		return
	}
	job.TotalItems = total
	if err := s.jobs.Create(ctx, job); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record ingest job")
	}
}

func (s *IngestService) finishJob(ctx context.Context, job *domain.IngestJob, batch *BatchResult) {
	if s.jobs == nil {
		return
	}
	job.ProcessedItems = batch.Succeeded + batch.Failed
	job.FailedItems = batch.Failed
	job.Status = domain.JobStatusCompleted
	if batch.Total > 0 && batch.Succeeded == 0 {
		job.Status = domain.JobStatusFailed
	}
	var errs []string
	for _, r := range batch.Results {
		if r != nil && !r.Succeeded() && r.Error != "" {
			errs = append(errs, r.VideoID+": "+r.Error)
		}
	}
	job.ErrorLog = strings.Join(errs, "\n")
	if err := s.jobs.Finish(context.WithoutCancel(ctx), job); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to finish ingest job")
	}
}

// Job returns the recorded ingest or reprocess job with the given token.
func (s *IngestService) Job(ctx context.Context, id string) (*domain.IngestJob, error) {
	if s.jobs == nil {
		return nil, domain.ErrNotFound
	}
	return s.jobs.GetByID(ctx, id)
}

// Jobs lists the most recent jobs, newest first.
func (s *IngestService) Jobs(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	if s.jobs == nil {
		return []domain.IngestJob{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.jobs.ListRecent(ctx, limit)
}

// ReprocessResult is returned by Reprocess.
type ReprocessResult struct {
	VideoID  string        `json:"video_id"`
	JobToken string        `json:"job_id"`
	Status   domain.Status `json:"status"`
	Run      *IngestResult `json:"run,omitempty"`
}

// Reprocess moves a failed or completed item back to PROCESSING, returns its
// job token and re-runs the fetch-to-succeed stages. With wait set the run
// happens before returning; otherwise it continues in the background and the
// result reports PROCESSING. Wait blocks until background runs are done.
func (s *IngestService) Reprocess(ctx context.Context, videoID string, wait bool) (*ReprocessResult, error) {
	ctx = logger.SetVideoID(ctx, videoID)
	item, token, err := s.machine.Reprocess(ctx, videoID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetJobID(ctx, token)

	job := &domain.IngestJob{ID: token, Kind: domain.JobKindReprocess, Input: videoID}
	s.startJob(ctx, job, 1)

	out := &ReprocessResult{VideoID: videoID, JobToken: token, Status: item.Status}
	if !wait {
		s.background.Add(1)
		go func(ctx context.Context) {
			defer s.background.Done()
			s.rerun(ctx, item, job)
		}(context.WithoutCancel(ctx))
		logger.FromContext(ctx).Info("Reprocess scheduled")
		return out, nil
	}

	res := s.rerun(ctx, item, job)
	out.Run = res
	out.Status = res.Status
	return out, nil
}

func (s *IngestService) rerun(ctx context.Context, item *domain.WorkItem, job *domain.IngestJob) *IngestResult {
	res := s.run(ctx, item, &IngestResult{VideoID: item.Identifier})
	batch := &BatchResult{Total: 1, Results: []*IngestResult{res}}
	batch.tally()
	s.finishJob(ctx, job, batch)
	return res
}

// Wait blocks until every background reprocess run has finished.
func (s *IngestService) Wait() {
	s.background.Wait()
}

// ErrIndexUnavailable is returned when no search backend is configured.
var ErrIndexUnavailable = errors.New("search index not configured")

// Index publishes the clean transcript of an item to the search index and
// records the result in the indexed flag. Status is never changed.
func (s *IngestService) Index(ctx context.Context, videoID string) (*domain.IndexDocument, error) {
	if s.index == nil {
		return nil, ErrIndexUnavailable
	}
	ctx = logger.SetStage(logger.SetVideoID(ctx, videoID), StageIndex)
	start := time.Now()
	defer observeStage(StageIndex, start)

	item, err := s.records.GetByIdentifier(ctx, videoID)
	if err != nil {
		return nil, err
	}

	content, err := s.artifacts.Get(ctx, videoID, domain.VariantClean)
	if err != nil {
		s.markIndexed(ctx, videoID, false)
		metrics.IndexTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("clean transcript for %s: %w", videoID, domain.ErrNotFound)
		}
		return nil, err
	}

	doc := domain.NewIndexDocument(videoID, item.Title, string(content))
	upsertCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	if err := s.index.Upsert(upsertCtx, doc); err != nil {
		s.markIndexed(ctx, videoID, false)
		metrics.IndexTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to index %s: %w", videoID, err)
	}

	s.markIndexed(ctx, videoID, true)
	metrics.IndexTotal.WithLabelValues("indexed").Inc()
	logger.With(logger.Fields{logger.FieldSize: len(content)}).Since(start).Info(ctx, "Transcript indexed")
	return doc, nil
}

func (s *IngestService) markIndexed(ctx context.Context, videoID string, indexed bool) {
	if err := s.records.SetIndexed(ctx, videoID, indexed); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to update indexed flag")
	}
}
