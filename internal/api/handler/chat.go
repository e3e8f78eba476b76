package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/service"
)

// ChatHandler answers questions about a match transcript.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Query handles POST /api/v1/chat/query (also mounted at /api/v1/chat/analyze).
func (h *ChatHandler) Query(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// History handles GET /api/v1/chat/history?video_id=&limit=.
func (h *ChatHandler) History(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	sessions, err := h.chat.History(c.Request.Context(), c.Query("video_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}
