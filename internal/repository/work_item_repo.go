package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/courtside/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkItemRepository is the record store for work items.
type WorkItemRepository struct {
	db *gorm.DB
}

// NewWorkItemRepository creates a new WorkItemRepository.
func NewWorkItemRepository(db *gorm.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

// WorkItemQuery filters a listing. Zero values mean no constraint.
type WorkItemQuery struct {
	Status *domain.Status
	// Text matches a substring of the title or identifier, case-insensitively.
	Text   string
	Limit  int
	Offset int
}

// CreateIfAbsent inserts item unless a record with the same identifier exists.
// It returns the stored record and whether it was created by this call.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: record to insert; ID is generated when empty.
//
// Returns:
//   - *domain.WorkItem: the stored record.
//   - bool: true if this call created the record.
//   - error: non-nil if the insert or lookup fails.
func (r *WorkItemRepository) CreateIfAbsent(ctx context.Context, item *domain.WorkItem) (*domain.WorkItem, bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = domain.StatusPending
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identifier"}},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return item, true, nil
	}

	existing, err := r.GetByIdentifier(ctx, item.Identifier)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByIdentifier retrieves a work item by its external identifier.
// Returns domain.ErrNotFound when no record exists.
func (r *WorkItemRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.WorkItem, error) {
	var item domain.WorkItem
	if err := r.db.WithContext(ctx).First(&item, "identifier = ?", identifier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ExistsByIdentifier checks whether a record exists for identifier.
func (r *WorkItemRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.WorkItem{}).
		Where("identifier = ?", identifier).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Transition moves a work item to status `to`, but only if its current status is one of `from`.
// The check and the write are a single UPDATE, so two concurrent callers can never both win.
// errorMessage replaces the stored message; pass "" to clear it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - identifier: work item identifier.
//   - from: statuses the item must currently be in.
//   - to: target status.
//   - errorMessage: message to store.
//
// Returns:
//   - *domain.WorkItem: the updated record.
//   - error: domain.ErrNotFound, a *domain.TransitionError, or a database error.
func (r *WorkItemRepository) Transition(ctx context.Context, identifier string, from []domain.Status, to domain.Status, errorMessage string) (*domain.WorkItem, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.WorkItem{}).
		Where("identifier = ? AND status IN ?", identifier, from).
		Updates(map[string]interface{}{
			"status":        to,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	current, err := r.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, &domain.TransitionError{Identifier: identifier, From: current.Status, To: to}
	}
	return current, nil
}

// SetIndexed records whether the clean transcript is published to the search index.
func (r *WorkItemRepository) SetIndexed(ctx context.Context, identifier string, indexed bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.WorkItem{}).
		Where("identifier = ?", identifier).
		Updates(map[string]interface{}{
			"indexed":    indexed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FillTitle sets the title only when the stored one is empty.
func (r *WorkItemRepository) FillTitle(ctx context.Context, identifier, title string) error {
	if title == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.WorkItem{}).
		Where("identifier = ? AND (title = '' OR title IS NULL)", identifier).
		Update("title", title).Error
}

// Delete removes the record for identifier.
func (r *WorkItemRepository) Delete(ctx context.Context, identifier string) error {
	res := r.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&domain.WorkItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Query lists work items newest first and reports the total matching count.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: filter and pagination.
//
// Returns:
//   - []domain.WorkItem: the requested page.
//   - int64: total number of matching records.
//   - error: non-nil if the query fails.
func (r *WorkItemRepository) Query(ctx context.Context, q WorkItemQuery) ([]domain.WorkItem, int64, error) {
	base := r.db.WithContext(ctx).Model(&domain.WorkItem{})
	if q.Status != nil {
		base = base.Where("status = ?", *q.Status)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		base = base.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(identifier) LIKE ? ESCAPE '\\')", pattern, pattern)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count work items: %w", err)
	}

	page := base.Session(&gorm.Session{}).Order("created_at DESC").Order("identifier ASC")
	if q.Limit > 0 {
		page = page.Limit(q.Limit)
	}
	if q.Offset > 0 {
		page = page.Offset(q.Offset)
	}

	var items []domain.WorkItem
	if err := page.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByStatus returns the number of records per status. Statuses with no records are present with zero.
func (r *WorkItemRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&domain.WorkItem{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int64, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountIndexed returns the number of records published to the search index.
func (r *WorkItemRepository) CountIndexed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.WorkItem{}).Where("indexed = ?", true).Count(&count).Error
	return count, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
