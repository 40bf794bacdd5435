package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"dibs-assistant/internal/common/config"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/common/observability"
	"dibs-assistant/internal/crm/augment"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"
	"dibs-assistant/internal/models"
)

// ConversationStore is the persistence the orchestrator writes turns to.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string, propertyID *int64) (int64, error)
	AddMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error)
}

// Request is one inbound chat turn.
type Request struct {
	Messages       []models.ChatMessage
	ConversationID *int64
	PropertyID     *int64
	RequestID      string
}

// Deps are the collaborators of an Orchestrator. Store and Queue may be nil,
// in which case turns are not persisted.
type Deps struct {
	Extractor     *intent.Extractor
	Resolver      *resolver.Resolver
	Augmenter     *augment.Augmenter
	Generator     Generator
	Store         ConversationStore
	Queue         *Queue
	Observability *observability.Observability
}

type Orchestrator struct {
	deps     Deps
	persona  string
	userID   string
	titleMax int
	logger   logger.Logger
}

const ellipsis = "..."

var errConversationUnavailable = errors.New("conversation was not created")

func NewOrchestrator(deps Deps, cfg config.ChatConfig, log logger.Logger) *Orchestrator {
	persona := cfg.SystemPrompt
	if persona == "" {
		persona = augment.Persona
	}
	titleMax := cfg.TitleMaxRunes
	if titleMax < 1 {
		titleMax = 50
	}
	if !cfg.Persist() {
		deps.Store = nil
	}
	return &Orchestrator{
		deps:     deps,
		persona:  persona,
		userID:   cfg.DemoUserID,
		titleMax: titleMax,
		logger:   log,
	}
}

// Instructions runs extraction, resolution and augmentation for message and
// returns the system text for the generator.
func (o *Orchestrator) Instructions(ctx context.Context, message string) string {
	q := o.deps.Extractor.Extract(message)
	result := o.deps.Resolver.Resolve(ctx, q)
	return o.deps.Augmenter.Augment(o.persona, result, intent.LooksLikeLookup(message), message)
}

// Handle streams the reply to req into sink. Persistence of the turn is
// handed to the queue and never delays or fails the stream. The returned
// error is non-nil only when the request is invalid or the sink stops
// accepting writes; generation failures are reported in the stream itself.
func (o *Orchestrator) Handle(ctx context.Context, req Request, sink StreamSink) error {
	start := time.Now()
	log := o.logger.With(map[string]interface{}{"requestId": req.RequestID})

	if len(req.Messages) == 0 {
		return apperrors.NewInvalidRequestError("messages must not be empty")
	}
	last := req.Messages[len(req.Messages)-1]
	if strings.TrimSpace(last.Content) == "" {
		return apperrors.NewInvalidRequestError("last message has no content")
	}

	system := o.Instructions(ctx, last.Content)
	ref := o.persistUserMessage(req, last.Content)

	var sinkErr error
	text, err := o.deps.Generator.Stream(ctx, GenerateRequest{System: system, Messages: req.Messages}, func(tok string) error {
		if werr := sink.WriteText(tok); werr != nil {
			sinkErr = werr
			return werr
		}
		return nil
	})

	status := FinishStop
	switch {
	case sinkErr != nil:
		status = "aborted"
		log.Warn("client stopped reading the stream", map[string]interface{}{"error": sinkErr.Error()})
		err = sinkErr
	case err != nil:
		status = FinishError
		std := apperrors.AsStandard(err)
		log.Error("generation failed", map[string]interface{}{"errorCode": string(std.Code), "error": err.Error()})
		err = o.finish(sink, "Error: "+std.Details, FinishError)
	default:
		err = o.finish(sink, "", FinishStop)
		o.persistAssistantMessage(ref, text)
	}

	elapsed := time.Since(start)
	metrics.ChatRequests.WithLabelValues(status).Inc()
	metrics.ChatRequestDuration.Observe(elapsed.Seconds())
	o.deps.Observability.RecordChatRequest(ctx, elapsed, status)
	log.Info("chat request completed", map[string]interface{}{"status": status, "durationMs": elapsed.Milliseconds()})
	return err
}

func (o *Orchestrator) finish(sink StreamSink, errMessage, reason string) error {
	if errMessage != "" {
		if err := sink.WriteError(errMessage); err != nil {
			return err
		}
	}
	return sink.Finish(reason)
}

func (o *Orchestrator) persisting() bool {
	return o.deps.Store != nil && o.deps.Queue != nil
}

// conversationRef carries the conversation id from the user message task to
// the assistant message task. It resolves exactly once.
type conversationRef struct {
	once sync.Once
	done chan struct{}
	id   int64
	err  error
}

func newConversationRef() *conversationRef {
	return &conversationRef{done: make(chan struct{})}
}

func (r *conversationRef) resolve(id int64, err error) {
	r.once.Do(func() {
		r.id, r.err = id, err
		close(r.done)
	})
}

func (r *conversationRef) wait(ctx context.Context) (int64, error) {
	select {
	case <-r.done:
		return r.id, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (o *Orchestrator) persistUserMessage(req Request, content string) *conversationRef {
	ref := newConversationRef()
	if !o.persisting() {
		ref.resolve(0, errConversationUnavailable)
		return ref
	}

	var given *int64
	if req.ConversationID != nil {
		id := *req.ConversationID
		given = &id
	}
	title := TruncateTitle(content, o.titleMax)
	propertyID := req.PropertyID

	task := Task{
		Name: "persist_user_message",
		Role: models.RoleUser,
		Run: func(ctx context.Context) error {
			defer ref.resolve(0, errConversationUnavailable)

			id := int64(0)
			if given != nil {
				id = *given
			} else {
				created, err := o.deps.Store.CreateConversation(ctx, o.userID, title, propertyID)
				if err != nil {
					ref.resolve(0, err)
					return err
				}
				id = created
			}

			_, err := o.deps.Store.AddMessage(ctx, id, models.RoleUser, content)
			ref.resolve(id, nil)
			return err
		},
	}
	if !o.deps.Queue.Submit(task) {
		if given != nil {
			ref.resolve(*given, nil)
		} else {
			ref.resolve(0, errConversationUnavailable)
		}
	}
	return ref
}

func (o *Orchestrator) persistAssistantMessage(ref *conversationRef, text string) {
	if !o.persisting() || text == "" {
		return
	}
	o.deps.Queue.Submit(Task{
		Name: "persist_assistant_message",
		Role: models.RoleAssistant,
		Run: func(ctx context.Context) error {
			id, err := ref.wait(ctx)
			if err != nil {
				return apperrors.NewPersistenceFailedError("resolve_conversation", err)
			}
			_, err = o.deps.Store.AddMessage(ctx, id, models.RoleAssistant, text)
			return err
		},
	})
}

// TruncateTitle keeps the first max runes of message, marking a cut with an
// ellipsis.
func TruncateTitle(message string, max int) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max]) + ellipsis
}
