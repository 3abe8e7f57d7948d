package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-copilot-go/internal/db"
	"ai-copilot-go/internal/llm"
	"ai-copilot-go/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxTitleRunes = 60

type SendMessageRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream"`
}

// SendMessage handles a user message against a conversation: the user message
// is persisted first, the conversation is auto-titled on its first message,
// the full history is sent to the model, and the reply is returned either as
// one JSON document or as an SSE stream of deltas. The user message survives
// every later failure.
func (h *Handler) SendMessage(c *gin.Context) {
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

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	if _, err := h.db.AppendMessage(id, models.RoleUser, req.Content); err != nil {
		h.logger.Error("failed to save user message", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	// Auto-title on the first message. Best effort; the send continues even
	// if the write fails.
	if conv.Title == "" {
		if err := h.db.UpdateConversationTitle(id, deriveTitle(req.Content, id)); err != nil {
			h.logger.Warn("failed to auto-title conversation", zap.Error(err), zap.Int64("conversation_id", id))
		}
	}

	messages, err := h.db.GetMessages(id)
	if err != nil {
		h.logger.Error("failed to assemble history", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	history := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, models.ChatMessage{Role: m.Role, Content: m.Content})
	}

	// The user message above is already durable at this point, so a missing
	// credential loses nothing but the reply.
	if h.cfg.OpenAIAPIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OPENAI_API_KEY is not configured"})
		return
	}

	if !req.Stream {
		h.sendComplete(c, id, history)
		return
	}
	h.sendStream(c, id, history)
}

func (h *Handler) sendComplete(c *gin.Context, id int64, history []models.ChatMessage) {
	text, err := h.llm.Complete(c.Request.Context(), history)
	if errors.Is(err, llm.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": llm.ErrNotConfigured.Error()})
		return
	}
	if err != nil {
		h.logger.Error("completion failed", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate completion"})
		return
	}

	if text != "" {
		if _, err := h.db.AppendMessage(id, models.RoleAssistant, text); err != nil {
			h.logger.Error("failed to save assistant message", zap.Error(err), zap.Int64("conversation_id", id))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"assistant_reply": text})
}

func (h *Handler) sendStream(c *gin.Context, id int64, history []models.ChatMessage) {
	stream, err := h.llm.CompleteStream(c.Request.Context(), history)
	if errors.Is(err, llm.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": llm.ErrNotConfigured.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to open completion stream", zap.Error(err), zap.Int64("conversation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate completion"})
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientCtx := c.Request.Context()
	var accum strings.Builder
	disconnected := false

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Upstream failed mid-stream: stop consuming, keep what was
			// accumulated, and still terminate the transport cleanly.
			h.logger.Error("stream failed", zap.Error(err), zap.Int64("conversation_id", id))
			break
		}

		// The peer closing the transport is the only cancellation signal;
		// the delta in hand when it fires is dropped, not forwarded.
		select {
		case <-clientCtx.Done():
			disconnected = true
		default:
		}
		if disconnected {
			break
		}

		accum.WriteString(delta)
		fmt.Fprintf(c.Writer, "data: %s\n\n", delta)
		c.Writer.Flush()
	}

	// Persist whatever was delivered, even after a disconnect.
	if accum.Len() > 0 {
		if _, err := h.db.AppendMessage(id, models.RoleAssistant, accum.String()); err != nil {
			h.logger.Error("failed to save assistant message", zap.Error(err), zap.Int64("conversation_id", id))
		}
	}

	if !disconnected {
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		c.Writer.Flush()
	}
}

// deriveTitle builds a conversation title from the first line of the first
// user message, truncated to 60 runes, falling back to one derived from the
// conversation id.
func deriveTitle(content string, id int64) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	runes := []rune(line)
	if len(runes) > maxTitleRunes {
		line = string(runes[:maxTitleRunes])
	}
	if line == "" {
		return fmt.Sprintf("Conversation %d", id)
	}
	return line
}
