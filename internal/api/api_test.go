package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dibs-assistant/internal/chat"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/crm/store/storetest"
	"dibs-assistant/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChat struct {
	got    chat.Request
	tokens []string
	err    error
}

func (f *fakeChat) Handle(_ context.Context, req chat.Request, sink chat.StreamSink) error {
	f.got = req
	if f.err != nil {
		return f.err
	}
	for _, tok := range f.tokens {
		if err := sink.WriteText(tok); err != nil {
			return err
		}
	}
	return sink.Finish(chat.FinishStop)
}

type fakeConversations struct {
	convs     map[int64]*models.Conversation
	deleted   []int64
	createdBy []string
	failList  error
}

func (f *fakeConversations) ListConversations(_ context.Context, userID string) ([]models.Conversation, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	out := []models.Conversation{}
	for _, c := range f.convs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversations) CreateConversation(_ context.Context, userID, title string, propertyID *int64) (int64, error) {
	id := int64(len(f.convs) + 100)
	f.convs[id] = &models.Conversation{ID: id, UserID: userID, Title: &title, PropertyID: propertyID}
	f.createdBy = append(f.createdBy, userID)
	return id, nil
}

func (f *fakeConversations) GetConversation(_ context.Context, id int64) (*models.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, apperrors.NewConversationNotFoundError(id)
	}
	return c, nil
}

func (f *fakeConversations) DeleteConversation(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	delete(f.convs, id)
	return nil
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	chat   *fakeChat
	convs  *fakeConversations
	store  *storetest.Store
}

func newTestServer(t *testing.T, checks map[string]Check) *testServer {
	t.Helper()
	v, err := validation.NewValidator()
	require.NoError(t, err)

	soon := fixedNow.Add(72 * time.Hour)
	later := fixedNow.Add(10 * 24 * time.Hour)
	jane := storetest.Client(42, "Jane", "Doe", "jane@example.com")
	jane.NextFollowUp = &soon
	bob := storetest.Client(7, "Bob", "Smith", "bob@example.com")
	bob.NextFollowUp = &later
	bob.Status = models.ClientStatusActive

	title := "Find Jane"
	ts := &testServer{
		chat: &fakeChat{},
		convs: &fakeConversations{convs: map[int64]*models.Conversation{
			1: {ID: 1, UserID: "demo-user", Title: &title},
		}},
		store: storetest.New(jane, bob),
	}
	h := NewHandlers(Deps{
		Chat:          ts.chat,
		Conversations: ts.convs,
		Clients:       ts.store,
		Validator:     v,
		Checks:        checks,
	}, "demo-user", logger.NewNoOpLogger())
	h.now = func() time.Time { return fixedNow }

	ts.router = NewRouter(h, "dibs-assistant-test", false)
	gin.SetMode(gin.TestMode)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestChat_Streams(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.chat.tokens = []string{"Hi", "!"}

	w := ts.do(http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hello"}],"conversationId":5}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0:\"Hi\"\n0:\"!\"\nd:{\"finishReason\":\"stop\"}\n", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	require.NotNil(t, ts.chat.got.ConversationID)
	assert.Equal(t, int64(5), *ts.chat.got.ConversationID)
	assert.Equal(t, w.Header().Get(requestIDHeader), ts.chat.got.RequestID)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}}, ts.chat.got.Messages)
}

func TestChat_KeepsCallerRequestID(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.Equal(t, "req-123", ts.chat.got.RequestID)
}

func TestChat_RejectsInvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, body := range []string{
		`{}`,
		`{"messages":[]}`,
		`{"messages":[{"role":"robot","content":"x"}]}`,
		`not json`,
	} {
		w := ts.do(http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestChat_HandlerErrorBeforeStreaming(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.chat.err = apperrors.NewInvalidRequestError("last message has no content")

	w := ts.do(http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":" "}]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
}

func TestConversations_ListAndCreate(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["conversations"], 1)

	w = ts.do(http.MethodPost, "/api/conversations", `{"title":"Budget questions","propertyId":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := int64(decode(t, w)["conversationId"].(float64))
	require.Contains(t, ts.convs.convs, id)
	assert.Equal(t, "Budget questions", *ts.convs.convs[id].Title)
	assert.Equal(t, int64(3), *ts.convs.convs[id].PropertyID)

	w = ts.do(http.MethodPost, "/api/conversations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"demo-user", "demo-user"}, ts.convs.createdBy)
}

func TestConversations_ListFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.convs.failList = apperrors.NewPersistenceFailedError("list_conversations", errors.New("db down"))

	w := ts.do(http.MethodGet, "/api/conversations", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestConversations_Get(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	conv := decode(t, w)["conversation"].(map[string]interface{})
	assert.Equal(t, "Find Jane", conv["title"])
	assert.Equal(t, []interface{}{}, conv["messages"])

	w = ts.do(http.MethodGet, "/api/conversations/999", "")
	require.Equal(t, http.StatusOK, w.Code)
	conv = decode(t, w)["conversation"].(map[string]interface{})
	assert.Equal(t, "Conversation not found", conv["title"])
	assert.Equal(t, float64(999), conv["id"])

	w = ts.do(http.MethodGet, "/api/conversations/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversations_Delete(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodDelete, "/api/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
	assert.Equal(t, []int64{1}, ts.convs.deleted)

	w = ts.do(http.MethodDelete, "/api/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestCRMTool(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    string
		wantCount  int
	}{
		{"client by id", `{"action":"getClientById","params":{"clientId":42}}`, http.StatusOK, "client", -1},
		{"client by string id", `{"action":"getClientById","params":{"clientId":"42"}}`, http.StatusOK, "client", -1},
		{"unknown id", `{"action":"getClientById","params":{"clientId":404}}`, http.StatusNotFound, "error", -1},
		{"missing id", `{"action":"getClientById","params":{}}`, http.StatusBadRequest, "error", -1},
		{"by name", `{"action":"searchClientsByName","params":{"name":"jane"}}`, http.StatusOK, "clients", 1},
		{"by name without match", `{"action":"searchClientsByName","params":{"name":"zed"}}`, http.StatusOK, "clients", 0},
		{"missing name", `{"action":"searchClientsByName"}`, http.StatusBadRequest, "error", -1},
		{"by email", `{"action":"searchClientsByEmail","params":{"email":"bob@example.com"}}`, http.StatusOK, "clients", 1},
		{"by status", `{"action":"getClientsByStatus","params":{"status":"Active"}}`, http.StatusOK, "clients", 1},
		{"follow ups default week", `{"action":"getClientsWithUpcomingFollowUps"}`, http.StatusOK, "clients", 1},
		{"follow ups two weeks", `{"action":"getClientsWithUpcomingFollowUps","params":{"days":14}}`, http.StatusOK, "clients", 2},
		{"huge days capped", `{"action":"getClientsWithUpcomingFollowUps","params":{"days":99999999999}}`, http.StatusOK, "clients", 2},
		{"negative days", `{"action":"getClientsWithUpcomingFollowUps","params":{"days":-1}}`, http.StatusBadRequest, "error", -1},
		{"unsupported", `{"action":"updateClient","params":{"clientId":42}}`, http.StatusBadRequest, "error", -1},
		{"missing action", `{"params":{}}`, http.StatusBadRequest, "error", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			w := ts.do(http.MethodPost, "/api/tools/crm", tt.body)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode(t, w)
			require.Contains(t, body, tt.wantKey)
			if tt.wantCount >= 0 {
				assert.Len(t, body[tt.wantKey], tt.wantCount)
			}
		})
	}
}

func TestCRMTool_StoreFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.store.FailOn("search_by_name", apperrors.NewStoreQueryFailedError("search_by_name", errors.New("conn reset")))

	w := ts.do(http.MethodPost, "/api/tools/crm", `{"action":"searchClientsByName","params":{"name":"jane"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "STORE_QUERY_FAILED", decode(t, w)["code"])
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, map[string]Check{
		"postgres": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/ready", "").Code)

	w := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	ts = newTestServer(t, map[string]Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = ts.do(http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]interface{}{"redis": "connection refused"}, decode(t, w)["checks"])
}
