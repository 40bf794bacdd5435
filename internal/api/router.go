// Package api exposes the assistant over HTTP: the streaming chat endpoint,
// conversation history and the CRM tool.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dibs-assistant/internal/chat"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/crm/store"
	"dibs-assistant/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
)

// ChatHandler streams one chat turn.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request, sink chat.StreamSink) error
}

// ConversationService is the conversation history backing the
// /api/conversations routes.
type ConversationService interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, userID, title string, propertyID *int64) (int64, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error
}

// Check is a readiness probe for one dependency.
type Check func(ctx context.Context) error

type Deps struct {
	Chat          ChatHandler
	Conversations ConversationService
	Clients       store.ClientStore
	Validator     *validation.Validator
	Checks        map[string]Check
}

type Handlers struct {
	deps   Deps
	userID string
	now    func() time.Time
	logger logger.Logger
}

func NewHandlers(deps Deps, userID string, log logger.Logger) *Handlers {
	return &Handlers{deps: deps, userID: userID, now: time.Now, logger: log}
}

// NewRouter builds the gin engine. debug switches gin to debug mode and
// enables its request logger.
func NewRouter(h *Handlers, serviceName string, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(requestID())
	if debug {
		router.Use(gin.Logger())
	}

	router.GET("/health", h.health)
	router.GET("/ready", h.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/chat", h.chat)

		api.GET("/conversations", h.listConversations)
		api.POST("/conversations", h.createConversation)
		api.GET("/conversations/:id", h.getConversation)
		api.DELETE("/conversations/:id", h.deleteConversation)

		api.POST("/tools/crm", h.crmTool)
	}
	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", map[string]interface{}{"checks": failed})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// respondError writes err as a JSON error body with the status its code maps to.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request",
			"code":   string(apperrors.ErrCodeInvalidRequest),
			"fields": verr.Fields,
		})
		return
	}

	std := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(std.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"requestId": c.GetString(requestIDKey),
			"path":      c.FullPath(),
			"errorCode": string(std.Code),
			"error":     err.Error(),
		})
	}
	c.JSON(status, gin.H{
		"error":   std.Message,
		"code":    string(std.Code),
		"details": std.Details,
	})
}
