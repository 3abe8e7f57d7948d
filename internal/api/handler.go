package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ai-copilot-go/internal/config"
	"ai-copilot-go/internal/db"
	"ai-copilot-go/internal/llm"
	"ai-copilot-go/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Completer is the slice of the model gateway the handlers depend on; tests
// substitute a stub.
type Completer interface {
	Complete(ctx context.Context, history []models.ChatMessage) (string, error)
	CompleteStream(ctx context.Context, history []models.ChatMessage) (llm.Stream, error)
}

type Handler struct {
	db     *db.Database
	llm    Completer
	cfg    config.Settings
	logger *zap.Logger
}

func NewHandler(database *db.Database, completer Completer, cfg config.Settings, logger *zap.Logger) *Handler {
	return &Handler{
		db:     database,
		llm:    completer,
		cfg:    cfg,
		logger: logger,
	}
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type conversationWithMessages struct {
	models.Conversation
	Messages []models.Message `json:"messages"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	// An absent body is treated as an untitled conversation.
	var req CreateConversationRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	conv, err := h.db.CreateConversation(req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	conversations, err := h.db.ListConversations()
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

func (h *Handler) GetConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	conv, err := h.db.GetConversation(id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get conversation", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	messages, err := h.db.GetMessages(id)
	if err != nil {
		h.logger.Error("failed to get messages", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, conversationWithMessages{Conversation: *conv, Messages: messages})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	err := h.db.DeleteConversation(id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete conversation", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}
