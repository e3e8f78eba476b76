package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/courtside/internal/domain"
	"gorm.io/gorm"
)

// IngestJobRepository records pipeline runs.
type IngestJobRepository struct {
	db *gorm.DB
}

// NewIngestJobRepository creates a new IngestJobRepository.
func NewIngestJobRepository(db *gorm.DB) *IngestJobRepository {
	return &IngestJobRepository{db: db}
}

// Create inserts a job in the running state.
func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	if job.Status == "" {
		job.Status = domain.JobStatusRunning
	}
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// Finish stores the final counters and status of a job.
func (r *IngestJobRepository) Finish(ctx context.Context, job *domain.IngestJob) error {
	now := time.Now().UTC()
	job.CompletedAt = &now
	return r.db.WithContext(ctx).
		Model(&domain.IngestJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":          job.Status,
			"total_items":     job.TotalItems,
			"processed_items": job.ProcessedItems,
			"failed_items":    job.FailedItems,
			"error_log":       job.ErrorLog,
			"completed_at":    now,
		}).Error
}

// GetByID retrieves a job by its token.
func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	var job domain.IngestJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the newest jobs first.
func (r *IngestJobRepository) ListRecent(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	var jobs []domain.IngestJob
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
