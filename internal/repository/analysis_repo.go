package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/timmy/courtside/internal/domain"
	"gorm.io/gorm"
)

// AnalysisSessionRepository stores answered transcript questions.
type AnalysisSessionRepository struct {
	db *gorm.DB
}

// NewAnalysisSessionRepository creates a new AnalysisSessionRepository.
func NewAnalysisSessionRepository(db *gorm.DB) *AnalysisSessionRepository {
	return &AnalysisSessionRepository{db: db}
}

// Create inserts a session, assigning an ID when none is set.
func (r *AnalysisSessionRepository) Create(ctx context.Context, session *domain.AnalysisSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// ListRecent returns the newest sessions first.
// Parameters:
//   - videoID: restricts the result to one video when non-empty.
//   - limit: maximum number of sessions; non-positive means no limit.
func (r *AnalysisSessionRepository) ListRecent(ctx context.Context, videoID string, limit int) ([]domain.AnalysisSession, error) {
	var sessions []domain.AnalysisSession
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if videoID != "" {
		q = q.Where("video_id = ?", videoID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
