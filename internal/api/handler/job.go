package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/service"
)

// JobHandler exposes recorded ingest and reprocess jobs.
type JobHandler struct {
	ingest *service.IngestService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(ingest *service.IngestService) *JobHandler {
	return &JobHandler{ingest: ingest}
}

// List handles GET /api/v1/jobs?limit=.
func (h *JobHandler) List(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	jobs, err := h.ingest.Jobs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.ingest.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
