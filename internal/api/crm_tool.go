package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

// CRM tool actions.
const (
	ActionGetClientByID        = "getClientById"
	ActionSearchClientsByName  = "searchClientsByName"
	ActionSearchClientsByEmail = "searchClientsByEmail"
	ActionGetClientsByStatus   = "getClientsByStatus"
	ActionUpcomingFollowUps    = "getClientsWithUpcomingFollowUps"
)

const defaultFollowUpDays = 7

type toolRequest struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// crmTool runs one structured CRM lookup on behalf of the model.
func (h *Handlers) crmTool(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if err := h.deps.Validator.ValidateJSON(validation.CRMToolRequest, body); err != nil {
		h.respondError(c, err)
		return
	}
	var req toolRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	clients := h.deps.Clients

	switch req.Action {
	case ActionGetClientByID:
		id, ok := intParam(req.Params, "clientId")
		if !ok {
			h.respondError(c, missingParam("clientId"))
			return
		}
		client, err := clients.GetByID(ctx, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if client == nil {
			h.respondError(c, apperrors.NewClientNotFoundError(id))
			return
		}
		c.JSON(http.StatusOK, gin.H{"client": client})

	case ActionSearchClientsByName:
		h.respondClients(c, req.Params, "name", clients.SearchByName)

	case ActionSearchClientsByEmail:
		h.respondClients(c, req.Params, "email", clients.SearchByEmail)

	case ActionGetClientsByStatus:
		h.respondClients(c, req.Params, "status", clients.FilterByStatus)

	case ActionUpcomingFollowUps:
		days := int64(defaultFollowUpDays)
		if stringParam(req.Params, "days") != "" {
			n, ok := intParam(req.Params, "days")
			if !ok || n < 0 {
				h.respondError(c, apperrors.NewInvalidRequestError("days must be a non-negative integer"))
				return
			}
			days = min(n, intent.MaxFollowUpDays)
		}
		start := h.now()
		found, err := clients.FilterByFollowUpWindow(ctx, start, start.AddDate(0, 0, int(days)))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": nonNil(found)})

	default:
		h.respondError(c, apperrors.NewUnsupportedActionError(req.Action))
	}
}

func (h *Handlers) respondClients(c *gin.Context, params map[string]interface{}, key string,
	lookup func(ctx context.Context, term string) ([]models.Client, error)) {
	term := stringParam(params, key)
	if term == "" {
		h.respondError(c, missingParam(key))
		return
	}
	found, err := lookup(c.Request.Context(), term)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": nonNil(found)})
}

func missingParam(name string) error {
	return apperrors.NewInvalidRequestError(fmt.Sprintf("missing required parameter: %s", name))
}

func stringParam(params map[string]interface{}, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intParam(params map[string]interface{}, key string) (int64, bool) {
	s := stringParam(params, key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func nonNil(clients []models.Client) []models.Client {
	if clients == nil {
		return []models.Client{}
	}
	return clients
}
