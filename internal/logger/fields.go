package logger

import (
	"context"
	"time"
)

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields propagated through context.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldComponent = "component"
	FieldVideoID   = "video_id"
	FieldStage     = "stage"
)

// Metric fields attached to single log lines.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)

// Entry is a log line under construction carrying metric fields.
//
//	logger.With(logger.Fields{logger.FieldCount: n}).Info(ctx, "Indexed %d items", n)
type Entry struct {
	fields Fields
}

// With starts an Entry.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// WithField adds one field to the Entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	merged := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		merged[k] = v
	}
	merged[key] = value
	return &Entry{fields: merged}
}

// Since adds duration_ms measured from start.
func (e *Entry) Since(start time.Time) *Entry {
	return e.WithField(FieldDurationMs, time.Since(start).Milliseconds())
}

// Info logs at Info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn logs at Warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}

// Error logs at Error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Errorf(format, args...)
}
