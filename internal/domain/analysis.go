package domain

import "time"

// AnalysisSession records one question answered from a transcript.
type AnalysisSession struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	VideoID          string      `gorm:"type:text;not null;index:idx_analysis_sessions_video" json:"video_id"`
	Question         string      `gorm:"type:text;not null" json:"question"`
	Answer           string      `gorm:"type:text" json:"ai_response"`
	SourceVideoIDs   StringArray `gorm:"type:text" json:"source_video_ids"`
	Model            string      `gorm:"type:text" json:"model,omitempty"`
	ProcessingTimeMS int64       `json:"processing_time_ms"`
	CreatedAt        time.Time   `gorm:"index:idx_analysis_sessions_created" json:"created_at"`
}

// TableName returns the database table name for AnalysisSession.
func (AnalysisSession) TableName() string {
	return "analysis_sessions"
}
