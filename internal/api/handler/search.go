package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	catalog *service.CatalogService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(catalog *service.CatalogService) *SearchHandler {
	return &SearchHandler{catalog: catalog}
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopN  int    `json:"top_n"`
}

// SearchResponse lists ranked transcript hits.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []domain.SearchHit `json:"results"`
	Total   int                `json:"total"`
}

// TextSearch handles POST /api/v1/search.
func (h *SearchHandler) TextSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	h.search(c, req.Query, req.TopN)
}

// TextSearchGet handles GET /api/v1/search?q=&top_n=.
func (h *SearchHandler) TextSearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "Query parameter 'q' is required")
		return
	}
	topN, ok := intQuery(c, "top_n")
	if !ok {
		return
	}
	h.search(c, query, topN)
}

func (h *SearchHandler) search(c *gin.Context, query string, topN int) {
	hits, err := h.catalog.Search(c.Request.Context(), query, topN)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Query: query, Results: hits, Total: len(hits)})
}
