package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/metrics"
	"github.com/timmy/courtside/internal/prompts"
	"github.com/timmy/courtside/internal/source"
)

var (
	// ErrInvalidHistory is returned when a conversation turn has an unknown role or no content.
	ErrInvalidHistory = errors.New("invalid conversation history")

	// ErrAnswerFailed wraps failures of the language model behind a question.
	ErrAnswerFailed = errors.New("failed to answer question")
)

// Completer runs chat completions. LLMCleaner implements it.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
}

// SessionStore keeps the history of answered questions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.AnalysisSession) error
	ListRecent(ctx context.Context, videoID string, limit int) ([]domain.AnalysisSession, error)
}

// ChatConfig holds sampling and history settings for ChatService.
type ChatConfig struct {
	Temperature  float64
	MaxTokens    int
	MaxHistory   int
	HistoryLimit int
	Model        string
}

// ChatService answers questions about one match from its clean transcript.
type ChatService struct {
	records   RecordStore
	artifacts ArtifactStore
	completer Completer
	sessions  SessionStore
	cfg       ChatConfig
}

// NewChatService creates a ChatService. sessions may be nil, in which case
// answers are not recorded.
func NewChatService(records RecordStore, artifacts ArtifactStore, completer Completer, sessions SessionStore, cfg *ChatConfig) *ChatService {
	c := ChatConfig{Temperature: 0.7, MaxTokens: 1000, MaxHistory: 20, HistoryLimit: 20}
	if cfg != nil {
		if cfg.Temperature > 0 {
			c.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			c.MaxTokens = cfg.MaxTokens
		}
		if cfg.MaxHistory > 0 {
			c.MaxHistory = cfg.MaxHistory
		}
		if cfg.HistoryLimit > 0 {
			c.HistoryLimit = cfg.HistoryLimit
		}
		c.Model = cfg.Model
	}
	return &ChatService{records: records, artifacts: artifacts, completer: completer, sessions: sessions, cfg: c}
}

// ChatRequest is a question about one video, with optional earlier turns.
type ChatRequest struct {
	VideoID string        `json:"video_id"`
	Query   string        `json:"query"`
	History []ChatMessage `json:"conversation_history,omitempty"`
}

// ChatSource names a transcript an answer was drawn from.
type ChatSource struct {
	Title   string `json:"title"`
	VideoID string `json:"video_id"`
}

// ChatAnswer is the reply to a ChatRequest.
type ChatAnswer struct {
	SessionID        string       `json:"session_id,omitempty"`
	Response         string       `json:"response"`
	Sources          []ChatSource `json:"sources"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
}

// Ask answers req.Query using only the clean transcript of req.VideoID.
// Returns:
//   - source.ErrEmptyInput if the query or video ID is blank.
//   - ErrInvalidHistory if a history turn is malformed.
//   - domain.ErrNotFound if the video has no clean transcript.
//   - ErrAnswerFailed if the model call fails.
func (c *ChatService) Ask(ctx context.Context, req ChatRequest) (*ChatAnswer, error) {
	start := time.Now()
	videoID := strings.TrimSpace(req.VideoID)
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("no query provided: %w", source.ErrEmptyInput)
	}
	if videoID == "" {
		return nil, fmt.Errorf("no video ID provided: %w", source.ErrEmptyInput)
	}
	history, err := c.history(req.History)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetVideoID(ctx, videoID)

	transcript, err := c.artifacts.Get(ctx, videoID, domain.VariantClean)
	if err != nil {
		metrics.ChatTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	title := c.title(ctx, videoID)

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: prompts.ChatSystem(videoID, title, string(transcript))})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: query})

	answer, err := c.completer.Complete(ctx, messages, CompletionOptions{
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}
	metrics.ChatTotal.WithLabelValues("ok").Inc()

	out := &ChatAnswer{
		Response:         answer,
		Sources:          []ChatSource{{Title: title, VideoID: videoID}},
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	out.SessionID = c.record(ctx, videoID, query, out)

	logger.With(logger.Fields{
		logger.FieldSize: len(answer),
	}).Since(start).Info(ctx, "Question answered")
	return out, nil
}

// history validates earlier turns and keeps the newest MaxHistory of them.
func (c *ChatService) history(turns []ChatMessage) ([]ChatMessage, error) {
	out := make([]ChatMessage, 0, len(turns))
	for i, t := range turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return nil, fmt.Errorf("%w: turn %d has role %q", ErrInvalidHistory, i, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" {
			return nil, fmt.Errorf("%w: turn %d is empty", ErrInvalidHistory, i)
		}
		out = append(out, ChatMessage{Role: t.Role, Content: t.Content})
	}
	if len(out) > c.cfg.MaxHistory {
		out = out[len(out)-c.cfg.MaxHistory:]
	}
	return out, nil
}

func (c *ChatService) title(ctx context.Context, videoID string) string {
	if c.records != nil {
		if item, err := c.records.GetByIdentifier(ctx, videoID); err == nil && item.Title != "" {
			return item.Title
		}
	}
	return fmt.Sprintf("Tennis Match (%s)", videoID)
}

// record stores the answered question. Failures are logged and do not fail the answer.
func (c *ChatService) record(ctx context.Context, videoID, query string, answer *ChatAnswer) string {
	if c.sessions == nil {
		return ""
	}
	session := &domain.AnalysisSession{
		VideoID:          videoID,
		Question:         query,
		Answer:           answer.Response,
		SourceVideoIDs:   domain.StringArray{videoID},
		Model:            c.cfg.Model,
		ProcessingTimeMS: answer.ProcessingTimeMS,
	}
	if err := c.sessions.Create(context.WithoutCancel(ctx), session); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record analysis session")
		return ""
	}
	return session.ID
}

// History returns recent answered questions, newest first, optionally for one video.
func (c *ChatService) History(ctx context.Context, videoID string, limit int) ([]domain.AnalysisSession, error) {
	if c.sessions == nil {
		return []domain.AnalysisSession{}, nil
	}
	if limit <= 0 {
		limit = c.cfg.HistoryLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return c.sessions.ListRecent(ctx, strings.TrimSpace(videoID), limit)
}
