package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	Title      *string `json:"title"`
	PropertyID *int64  `json:"propertyId"`
}

// conversationView always renders messages, even when there are none.
type conversationView struct {
	models.Conversation
	Messages []models.Message `json:"messages"`
}

func (h *Handlers) listConversations(c *gin.Context) {
	convs, err := h.deps.Conversations.ListConversations(c.Request.Context(), h.userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handlers) createConversation(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := h.deps.Validator.ValidateJSON(validation.CreateConversation, body); err != nil {
		h.respondError(c, err)
		return
	}
	var req createConversationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	id, err := h.deps.Conversations.CreateConversation(c.Request.Context(), h.userID, title, req.PropertyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": id})
}

// getConversation answers an unknown id with a placeholder conversation
// rather than a 404, which is what the chat UI expects.
func (h *Handlers) getConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	conv, err := h.deps.Conversations.GetConversation(c.Request.Context(), id)
	if err != nil {
		if apperrors.AsStandard(err).Code == apperrors.ErrCodeConversationNotFound {
			c.JSON(http.StatusOK, gin.H{"conversation": gin.H{
				"id":       id,
				"title":    "Conversation not found",
				"user_id":  h.userID,
				"messages": []models.Message{},
			}})
			return
		}
		h.respondError(c, err)
		return
	}

	view := conversationView{Conversation: *conv, Messages: conv.Messages}
	if view.Messages == nil {
		view.Messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

func (h *Handlers) deleteConversation(c *gin.Context) {
	id, ok := h.conversationID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.deps.Conversations.GetConversation(ctx, id); err != nil {
		if apperrors.AsStandard(err).Code == apperrors.ErrCodeConversationNotFound {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Conversation not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	if err := h.deps.Conversations.DeleteConversation(ctx, id); err != nil {
		h.logger.Error("failed to delete conversation", map[string]interface{}{
			"conversationId": id,
			"error":          err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error deleting conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		h.respondError(c, apperrors.NewInvalidRequestError("conversation id must be a positive integer"))
		return 0, false
	}
	return id, true
}
