package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status represents the processing status of a work item.
// Values include StatusPending, StatusProcessing, StatusCompleted, and StatusFailed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus converts a stored or user supplied string into a Status.
// Parameters:
//   - s: lower-case status name.
//
// Returns:
//   - Status: parsed status.
//   - error: non-nil if s is not a known status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Value implements driver.Valuer so unknown statuses never reach the database.
func (s Status) Value() (driver.Value, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = StatusPending
		return nil
	default:
		return errors.New("failed to scan Status")
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StringArray stores a string slice as JSON text.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// WorkItem tracks the ingestion of one video transcript.
type WorkItem struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	Identifier   string      `gorm:"type:text;not null;uniqueIndex:idx_work_items_identifier" json:"video_id"`
	Title        string      `gorm:"type:text;not null" json:"title"`
	Players      StringArray `gorm:"type:text" json:"players"`
	Tournament   string      `gorm:"type:text" json:"tournament,omitempty"`
	Status       Status      `gorm:"type:text;index:idx_work_items_status;default:pending" json:"status"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	Indexed      bool        `gorm:"default:false" json:"indexed"`
	CreatedAt    time.Time   `gorm:"index:idx_work_items_created" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for WorkItem.
func (WorkItem) TableName() string {
	return "work_items"
}

// WatchURL returns the public video URL for the item.
func WatchURL(identifier string) string {
	return "https://www.youtube.com/watch?v=" + identifier
}

// ThumbnailURL returns the medium-quality thumbnail URL for the item.
func ThumbnailURL(identifier string) string {
	return "https://img.youtube.com/vi/" + identifier + "/mqdefault.jpg"
}
