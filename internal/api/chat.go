package api

import (
	"encoding/json"

	"dibs-assistant/internal/chat"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Messages       []models.ChatMessage `json:"messages"`
	ConversationID *int64               `json:"conversationId"`
	PropertyID     *int64               `json:"propertyId"`
}

// chat streams the assistant's reply using the data stream protocol.
func (h *Handlers) chat(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if err := h.deps.Validator.ValidateJSON(validation.ChatRequest, body); err != nil {
		h.respondError(c, err)
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Vercel-AI-Data-Stream", "v1")

	err = h.deps.Chat.Handle(c.Request.Context(), chat.Request{
		Messages:       req.Messages,
		ConversationID: req.ConversationID,
		PropertyID:     req.PropertyID,
		RequestID:      c.GetString(requestIDKey),
	}, chat.NewDataStreamWriter(c.Writer))
	if err == nil {
		return
	}

	if !c.Writer.Written() {
		c.Header("Content-Type", "")
		c.Header("X-Vercel-AI-Data-Stream", "")
		h.respondError(c, err)
		return
	}
	h.logger.Warn("chat stream ended early", map[string]interface{}{
		"requestId": c.GetString(requestIDKey),
		"error":     err.Error(),
	})
}
