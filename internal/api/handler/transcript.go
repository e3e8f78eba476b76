package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/service"
)

// TranscriptHandler handles ingestion and transcript artifact endpoints.
type TranscriptHandler struct {
	ingest  *service.IngestService
	catalog *service.CatalogService
}

// NewTranscriptHandler creates a new transcript handler.
func NewTranscriptHandler(ingest *service.IngestService, catalog *service.CatalogService) *TranscriptHandler {
	return &TranscriptHandler{ingest: ingest, catalog: catalog}
}

// IngestRequest is the body of POST /api/v1/transcripts.
type IngestRequest struct {
	// Input is a video ID, a video URL, or a playlist URL/ID.
	Input string `json:"input" binding:"required"`
	Title string `json:"title"`
}

// Ingest handles POST /api/v1/transcripts. It runs synchronously and returns
// the per-video results; 200 is returned even when individual videos failed.
func (h *TranscriptHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	batch, err := h.ingest.IngestInput(c.Request.Context(), req.Input, req.Title)
	if err != nil {
		if status := statusFor(err); status == http.StatusInternalServerError {
			// Anything not classified here is an input problem.
			badRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// List handles GET /api/v1/transcripts.
func (h *TranscriptHandler) List(c *gin.Context) {
	list, err := h.catalog.ListTranscripts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transcripts": list,
		"total":       len(list),
	})
}

// Content handles GET /api/v1/transcripts/:id?variant=clean|raw.
func (h *TranscriptHandler) Content(c *gin.Context) {
	variant := domain.VariantClean
	if v := c.Query("variant"); v != "" {
		parsed, err := domain.ParseVariant(v)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		variant = parsed
	}

	id := c.Param("id")
	text, err := h.catalog.TranscriptContent(c.Request.Context(), id, variant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id": id,
		"variant":  variant,
		"content":  text,
		"length":   len(text),
	})
}
