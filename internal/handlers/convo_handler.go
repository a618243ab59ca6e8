package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

type ConversationHandler struct {
	convoService conversation.ConversationService
	logger       *Logger.Logger
}

func NewConvoHandler(
	convoService conversation.ConversationService,
	logger *Logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		convoService: convoService,
		logger:       logger,
	}
}

func summarize(c types.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:           c.ID.String(),
		Title:        c.Title,
		Topic:        c.Topic,
		Mode:         c.Mode,
		Language:     c.Language,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
	}
}

// ListConversations gets the conversation history
// @Summary List conversation history
// @Description Lists the device's saved conversations, most recently created first
// @Tags Conversation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ListConversationsResponse "Conversation history"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	convs, err := h.convoService.List(c.Request.Context(), userInfo.UserID)
	if err != nil {
		h.logger.Errorf("list conversations error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, summarize(conv))
	}
	c.JSON(http.StatusOK, ListConversationsResponse{Conversations: summaries, Total: len(summaries)})
}

// GetConversation gets one conversation with its messages
// @Summary Get a conversation
// @Tags Conversation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} ConversationResponse "Conversation"
// @Failure 400 {object} ErrorResponse "Invalid id"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 404 {object} ErrorResponse "Conversation not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.convoService.Get(c.Request.Context(), userInfo.UserID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{Conversation: *conv})
}

// DeleteConversation removes one conversation from history
// @Summary Delete a conversation
// @Tags Conversation
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 204 "Conversation deleted"
// @Failure 400 {object} ErrorResponse "Invalid id"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 404 {object} ErrorResponse "Conversation not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /conversations/{id} [delete]
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.convoService.Delete(c.Request.Context(), userInfo.UserID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearConversations removes the whole history
// @Summary Clear conversation history
// @Tags Conversation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse "History cleared"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /conversations [delete]
func (h *ConversationHandler) ClearConversations(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	if err := h.convoService.Clear(c.Request.Context(), userInfo.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "History cleared"})
}

// ExportConversation downloads a conversation as plain text
// @Summary Export a conversation
// @Description Plain-text transcript, one "[HH:MM] User|Guru: text" entry per message
// @Tags Conversation
// @Produce plain
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {string} string "Transcript file"
// @Failure 400 {object} ErrorResponse "Invalid id"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 404 {object} ErrorResponse "Conversation not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /conversations/{id}/export [get]
func (h *ConversationHandler) ExportConversation(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	file, err := h.convoService.Export(c.Request.Context(), userInfo.UserID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(file.Content))
}

func (h *ConversationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
	default:
		h.logger.Errorf("conversation error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// RegisterConversationRoutes registers all conversation-related routes
func (h *ConversationHandler) RegisterConversationRoutes(r *gin.RouterGroup, authService auth.AuthService) {
	protected := r.Group("/conversations")
	protected.Use(AuthMiddleware(authService, h.logger))
	{
		protected.GET("", h.ListConversations)
		protected.DELETE("", h.ClearConversations)
		protected.GET("/:id", h.GetConversation)
		protected.DELETE("/:id", h.DeleteConversation)
		protected.GET("/:id/export", h.ExportConversation)
	}
}
