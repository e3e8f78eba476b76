package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/service"
)

// MatchHandler handles work item endpoints.
type MatchHandler struct {
	ingest  *service.IngestService
	catalog *service.CatalogService
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(ingest *service.IngestService, catalog *service.CatalogService) *MatchHandler {
	return &MatchHandler{ingest: ingest, catalog: catalog}
}

// List handles GET /api/v1/matches?status=&q=&limit=&offset=.
func (h *MatchHandler) List(c *gin.Context) {
	opts := service.ListOptions{Text: c.Query("q")}

	if s := c.Query("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		opts.Status = &status
	}
	var ok bool
	if opts.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if opts.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}

	page, err := h.catalog.List(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get handles GET /api/v1/matches/:id?content=true.
func (h *MatchHandler) Get(c *gin.Context) {
	withContent := c.Query("content") == "true"
	view, err := h.catalog.Get(c.Request.Context(), c.Param("id"), withContent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /api/v1/matches/:id.
func (h *MatchHandler) Delete(c *gin.Context) {
	res, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reprocess handles POST /api/v1/matches/:id/reprocess?wait=true.
// Without wait the pipeline runs in the background and 202 is returned.
func (h *MatchHandler) Reprocess(c *gin.Context) {
	wait := c.Query("wait") == "true"
	res, err := h.ingest.Reprocess(c.Request.Context(), c.Param("id"), wait)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// Index handles POST /api/v1/matches/:id/index.
func (h *MatchHandler) Index(c *gin.Context) {
	doc, err := h.ingest.Index(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id": doc.ParentID,
		"indexed":  true,
		"title":    doc.Title,
		"url":      doc.URL,
	})
}

// Stats handles GET /api/v1/stats.
func (h *MatchHandler) Stats(c *gin.Context) {
	st, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Migrate handles POST /api/v1/migrate.
func (h *MatchHandler) Migrate(c *gin.Context) {
	res, err := h.catalog.Migrate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// intQuery parses an optional non-negative integer query parameter, writing a
// 400 response and returning false when it is malformed.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "Invalid "+name+": "+raw)
		return 0, false
	}
	return n, true
}
