package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"dibs-assistant/internal/common/config"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/crm/augment"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"
	"dibs-assistant/internal/crm/store/storetest"
	"dibs-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeGenerator struct {
	tokens []string
	err    error
	got    GenerateRequest
}

func (g *fakeGenerator) Stream(_ context.Context, req GenerateRequest, onToken func(string) error) (string, error) {
	g.got = req
	var text strings.Builder
	for _, tok := range g.tokens {
		text.WriteString(tok)
		if err := onToken(tok); err != nil {
			return text.String(), err
		}
	}
	return text.String(), g.err
}

type storedMessage struct {
	conversationID int64
	role           models.Role
	content        string
}

type createdConversation struct {
	userID string
	title  string
}

type fakeConversations struct {
	mu         sync.Mutex
	created    []createdConversation
	messages   []storedMessage
	createErr  error
	addErr     error
	nextConvID int64
}

func (f *fakeConversations) CreateConversation(_ context.Context, userID, title string, _ *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextConvID++
	f.created = append(f.created, createdConversation{userID: userID, title: title})
	return f.nextConvID, nil
}

func (f *fakeConversations) AddMessage(_ context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.messages = append(f.messages, storedMessage{conversationID: conversationID, role: role, content: content})
	return &models.Message{ID: int64(len(f.messages)), ConversationID: conversationID, Role: role, Content: content}, nil
}

type failingSink struct{}

func (failingSink) WriteText(string) error  { return errors.New("broken pipe") }
func (failingSink) WriteError(string) error { return nil }
func (failingSink) Finish(string) error     { return nil }

type harness struct {
	orch  *Orchestrator
	gen   *fakeGenerator
	convs *fakeConversations
	queue *Queue
	sink  *sinkRecorder
}

func newHarness(t *testing.T, cfg config.ChatConfig, clients ...models.Client) *harness {
	t.Helper()
	log := logger.NewNoOpLogger()
	h := &harness{gen: &fakeGenerator{}, convs: &fakeConversations{}, sink: &sinkRecorder{}}
	h.queue = NewQueue(2, 16, h.sink.sink, log)

	if cfg.DemoUserID == "" {
		cfg.DemoUserID = "demo-user"
	}
	h.orch = NewOrchestrator(Deps{
		Extractor: intent.NewExtractor(log),
		Resolver:  resolver.New(storetest.New(clients...), log),
		Augmenter: augment.New(augment.DefaultMaxRecords, log),
		Generator: h.gen,
		Store:     h.convs,
		Queue:     h.queue,
	}, cfg, log)
	return h
}

// drain waits for every detached task submitted so far.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.queue.Close(context.Background()))
}

func userTurn(content string) []models.ChatMessage {
	return []models.ChatMessage{{Role: models.RoleUser, Content: content}}
}

func TestOrchestrator_StreamsAndPersistsNewConversation(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{}, storetest.Client(42, "Jane", "Doe", "jane@example.com"))
	h.gen.tokens = []string{"Jane ", "Doe is on file."}

	var out bytes.Buffer
	err := h.orch.Handle(context.Background(), Request{Messages: userTurn("client with id 42")}, NewDataStreamWriter(&out))
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, "0:\"Jane \"\n0:\"Doe is on file.\"\nd:{\"finishReason\":\"stop\"}\n", out.String())
	assert.True(t, strings.HasPrefix(h.gen.got.System, augment.Persona))
	assert.Contains(t, h.gen.got.System, "## CRM data")
	assert.Contains(t, h.gen.got.System, "jane@example.com")

	require.Len(t, h.convs.created, 1)
	assert.Equal(t, createdConversation{userID: "demo-user", title: "client with id 42"}, h.convs.created[0])
	assert.Equal(t, []storedMessage{
		{conversationID: 1, role: models.RoleUser, content: "client with id 42"},
		{conversationID: 1, role: models.RoleAssistant, content: "Jane Doe is on file."},
	}, h.convs.messages)
	assert.Empty(t, h.sink.all())
}

func TestOrchestrator_ExistingConversation(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{})
	h.gen.tokens = []string{"Rates vary."}
	convID := int64(7)

	var out bytes.Buffer
	require.NoError(t, h.orch.Handle(context.Background(), Request{
		Messages:       userTurn("what are current mortgage rates?"),
		ConversationID: &convID,
	}, NewDataStreamWriter(&out)))
	h.drain(t)

	assert.Empty(t, h.convs.created)
	require.Len(t, h.convs.messages, 2)
	assert.Equal(t, int64(7), h.convs.messages[0].conversationID)
	assert.Equal(t, int64(7), h.convs.messages[1].conversationID)
	assert.NotContains(t, h.gen.got.System, "## CRM")
}

func TestOrchestrator_PersistenceFailureDoesNotAffectStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{})
	h.convs.createErr = errors.New("connection refused")
	h.gen.tokens = []string{"Hello", " there"}

	var out bytes.Buffer
	require.NoError(t, h.orch.Handle(context.Background(), Request{Messages: userTurn("hello there")}, NewDataStreamWriter(&out)))
	h.drain(t)

	assert.Equal(t, "0:\"Hello\"\n0:\" there\"\nd:{\"finishReason\":\"stop\"}\n", out.String())
	assert.Empty(t, h.convs.messages)

	failed := h.sink.all()
	require.Len(t, failed, 2)
	names := []string{failed[0].task, failed[1].task}
	assert.ElementsMatch(t, []string{"persist_user_message", "persist_assistant_message"}, names)
}

func TestOrchestrator_GenerationFailureIsStreamed(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{})
	h.gen.tokens = []string{"Par"}
	h.gen.err = apperrors.NewGenerationFailedError(errors.New("upstream returned 500"))

	var out bytes.Buffer
	require.NoError(t, h.orch.Handle(context.Background(), Request{Messages: userTurn("hello there")}, NewDataStreamWriter(&out)))
	h.drain(t)

	assert.Equal(t,
		"0:\"Par\"\n3:\"Error: upstream returned 500\"\nd:{\"finishReason\":\"error\"}\n",
		out.String())
	require.Len(t, h.convs.messages, 1)
	assert.Equal(t, models.RoleUser, h.convs.messages[0].role)
}

func TestOrchestrator_RecoveryScriptWhenLookupMisses(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{}, storetest.Client(1, "Bob", "Jones", "bob@example.com"))
	h.gen.tokens = []string{"No record."}

	require.NoError(t, h.orch.Handle(context.Background(),
		Request{Messages: userTurn("find Jane Smith in the CRM")}, NewDataStreamWriter(&bytes.Buffer{})))
	h.drain(t)

	assert.Contains(t, h.gen.got.System, "## CRM search")
	assert.Contains(t, h.gen.got.System, `"Jane Smith"`)
}

func TestOrchestrator_SinkFailureStopsStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{})
	h.gen.tokens = []string{"a", "b"}

	err := h.orch.Handle(context.Background(), Request{Messages: userTurn("hello there")}, failingSink{})
	require.EqualError(t, err, "broken pipe")
	h.drain(t)

	require.Len(t, h.convs.messages, 1)
	assert.Equal(t, models.RoleUser, h.convs.messages[0].role)
}

func TestOrchestrator_RejectsEmptyTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{})
	var out bytes.Buffer

	err := h.orch.Handle(context.Background(), Request{}, NewDataStreamWriter(&out))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.AsStandard(err).Code)

	err = h.orch.Handle(context.Background(), Request{Messages: userTurn("   ")}, NewDataStreamWriter(&out))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.AsStandard(err).Code)

	h.drain(t)
	assert.Empty(t, out.String())
	assert.Empty(t, h.convs.messages)
}

func TestOrchestrator_PersistenceDisabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	off := false
	h := newHarness(t, config.ChatConfig{PersistenceEnabled: &off})
	h.gen.tokens = []string{"ok"}

	require.NoError(t, h.orch.Handle(context.Background(), Request{Messages: userTurn("hello there")}, NewDataStreamWriter(&bytes.Buffer{})))
	h.drain(t)

	assert.Empty(t, h.convs.created)
	assert.Empty(t, h.convs.messages)
}

func TestOrchestrator_SystemPromptOverride(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, config.ChatConfig{SystemPrompt: "You are a terse CRM bot."})
	h.gen.tokens = []string{"ok"}

	require.NoError(t, h.orch.Handle(context.Background(), Request{Messages: userTurn("hello there")}, NewDataStreamWriter(&bytes.Buffer{})))
	h.drain(t)
	assert.True(t, strings.HasPrefix(h.gen.got.System, "You are a terse CRM bot."))
}

func TestTruncateTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	assert.Equal(t, strings.Repeat("a", 50)+"...", TruncateTitle(long, 50))
	assert.Equal(t, strings.Repeat("a", 50), TruncateTitle(strings.Repeat("a", 50), 50))
	assert.Equal(t, "héllo", TruncateTitle("  héllo ", 50))
	assert.Equal(t, "ééé...", TruncateTitle("éééé", 3))
}
