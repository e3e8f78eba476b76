package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/repository"
)

// RecordStore persists work items. Status changes go through Transition only.
type RecordStore interface {
	CreateIfAbsent(ctx context.Context, item *domain.WorkItem) (*domain.WorkItem, bool, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.WorkItem, error)
	ExistsByIdentifier(ctx context.Context, identifier string) (bool, error)
	Transition(ctx context.Context, identifier string, from []domain.Status, to domain.Status, errorMessage string) (*domain.WorkItem, error)
	SetIndexed(ctx context.Context, identifier string, indexed bool) error
	FillTitle(ctx context.Context, identifier, title string) error
	Delete(ctx context.Context, identifier string) error
	Query(ctx context.Context, q repository.WorkItemQuery) ([]domain.WorkItem, int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
	CountIndexed(ctx context.Context) (int64, error)
}

var (
	startableFrom     = []domain.Status{domain.StatusPending, domain.StatusFailed}
	succeedableFrom   = []domain.Status{domain.StatusProcessing}
	reprocessableFrom = []domain.Status{domain.StatusFailed, domain.StatusCompleted}
	claimableFrom     = []domain.Status{domain.StatusPending, domain.StatusFailed, domain.StatusCompleted}
)

// jobTokenLayout formats the timestamp part of a reprocess token.
const jobTokenLayout = "20060102_150405"

// StateMachine applies the work item lifecycle:
//
//	PENDING|FAILED    -> PROCESSING  (Start)
//	PROCESSING        -> COMPLETED   (Succeed)
//	any               -> FAILED      (Fail)
//	FAILED|COMPLETED  -> PROCESSING  (Reprocess)
//
// Claim is Start widened by the COMPLETED reprocess edge, used when an
// ingest is re-run over an existing item.
//
// Each transition is one conditional update, so a lost race surfaces as
// domain.ErrInvalidTransition instead of a double run.
type StateMachine struct {
	records RecordStore
	now     func() time.Time
}

// NewStateMachine creates a StateMachine over records.
func NewStateMachine(records RecordStore) *StateMachine {
	return &StateMachine{records: records, now: time.Now}
}

// Start claims an item for a pipeline run and clears any previous error.
func (m *StateMachine) Start(ctx context.Context, identifier string) (*domain.WorkItem, error) {
	return m.transition(ctx, identifier, startableFrom, domain.StatusProcessing, "")
}

// Claim moves any item that is not already PROCESSING to PROCESSING in one
// conditional update.
func (m *StateMachine) Claim(ctx context.Context, identifier string) (*domain.WorkItem, error) {
	return m.transition(ctx, identifier, claimableFrom, domain.StatusProcessing, "")
}

// Succeed marks a running item completed.
func (m *StateMachine) Succeed(ctx context.Context, identifier string) (*domain.WorkItem, error) {
	return m.transition(ctx, identifier, succeedableFrom, domain.StatusCompleted, "")
}

// Fail marks an item failed from any status and records message.
func (m *StateMachine) Fail(ctx context.Context, identifier, message string) (*domain.WorkItem, error) {
	return m.transition(ctx, identifier, domain.AllStatuses, domain.StatusFailed, message)
}

// Reprocess moves a failed or completed item back to PROCESSING and returns a
// correlation token. The token does not schedule anything.
func (m *StateMachine) Reprocess(ctx context.Context, identifier string) (*domain.WorkItem, string, error) {
	item, err := m.transition(ctx, identifier, reprocessableFrom, domain.StatusProcessing, "")
	if err != nil {
		return nil, "", err
	}
	return item, JobToken(identifier, m.now()), nil
}

func (m *StateMachine) transition(ctx context.Context, identifier string, from []domain.Status, to domain.Status, message string) (*domain.WorkItem, error) {
	item, err := m.records.Transition(ctx, identifier, from, to, message)
	if err != nil {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldVideoID: identifier,
			logger.FieldStatus:  string(to),
		}).WithError(err).Warn("Status transition rejected")
		return nil, err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldVideoID: identifier,
		logger.FieldStatus:  string(to),
	}).Debug("Status transition applied")
	return item, nil
}

// JobToken builds reprocess_<identifier>_<YYYYmmdd_HHMMSS> in UTC.
func JobToken(identifier string, t time.Time) string {
	return fmt.Sprintf("reprocess_%s_%s", identifier, t.UTC().Format(jobTokenLayout))
}
