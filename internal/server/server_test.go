// ABOUTME: End-to-end tests for the HTTP server over httptest.
// ABOUTME: Uses a sqlite store, real sessions, a fake chatter, and fake events.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banrovegrie/makearjowork/internal/assistant"
	"github.com/banrovegrie/makearjowork/internal/auth"
	"github.com/banrovegrie/makearjowork/internal/calendar"
	"github.com/banrovegrie/makearjowork/internal/mail"
	"github.com/banrovegrie/makearjowork/internal/store"
)

type fakeChatter struct {
	reply *assistant.Reply
	err   error
	last  string
}

func (f *fakeChatter) Chat(ctx context.Context, userEmail, message string) (*assistant.Reply, error) {
	f.last = message
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakeEvents struct {
	events []calendar.Event
}

func (f *fakeEvents) UpcomingEvents(ctx context.Context) []calendar.Event {
	return f.events
}

type testEnv struct {
	server  *httptest.Server
	store   store.Store
	session *auth.Sessions
	chatter *fakeChatter
	events  *fakeEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := auth.NewSessions([]byte("test-secret"), time.Hour)
	login := auth.NewService(st, sessions, mail.NewLogSender(), auth.Config{
		BaseURL:       "http://localhost:5001",
		AllowedDomain: "fydy.ai",
	})

	chatter := &fakeChatter{reply: &assistant.Reply{Response: "ok"}}
	events := &fakeEvents{}

	srv := New(st, login, chatter, events, Config{MaintenanceToken: "maint-token"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, session: sessions, chatter: chatter, events: events}
}

// request performs an HTTP call with an optional session cookie and JSON body.
func (e *testEnv) request(t *testing.T, method, path, sessionToken string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: sessionToken})
	}

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) loginAs(t *testing.T, email string) string {
	t.Helper()
	user, err := e.store.CreateUser(context.Background(), email)
	require.NoError(t, err)
	token, err := e.session.Issue(user.ID, user.Email)
	require.NoError(t, err)
	return token
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestIndexRedirects(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestDashboardRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	token := env.loginAs(t, "arjo@fydy.ai")
	resp = env.request(t, http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "arjo@fydy.ai")
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	// Wrong domain is rejected on the form.
	resp, err := http.Post(env.server.URL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader("email=intruder@evil.com"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "not allowed")

	// Right domain gets the success page.
	resp, err = http.Post(env.server.URL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader("email=arjo@fydy.ai"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "login link is on its way")
}

func TestAuthRedeemInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/auth/bogus-token", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Invalid or expired link")
}

func TestAuthRedeemSetsSession(t *testing.T) {
	env := newTestEnv(t)

	token, err := auth.NewLinkToken()
	require.NoError(t, err)
	require.NoError(t, env.store.CreateMagicLink(context.Background(), &store.MagicLink{
		Email:     "arjo@fydy.ai",
		Token:     token,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}))

	resp := env.request(t, http.MethodGet, "/auth/"+token, "", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.NotEmpty(t, sessionCookie.Value)
}

func TestTasksAPI(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginAs(t, "arjo@fydy.ai")

	// Unauthenticated requests get a JSON 401.
	resp := env.request(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Create
	resp = env.request(t, http.MethodPost, "/api/tasks", token, map[string]string{
		"title": "Write report", "description": "Q3 numbers",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[taskResponse](t, resp)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, "arjo@fydy.ai", created.AssignedBy)
	assert.Equal(t, store.TaskStatusPending, created.Status)

	// Missing title
	resp = env.request(t, http.MethodPost, "/api/tasks", token, map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Update keeps absent fields
	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", created.ID), token,
		map[string]string{"status": store.TaskStatusInProgress})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[taskResponse](t, resp)
	assert.Equal(t, "Write report", updated.Title)
	assert.Equal(t, store.TaskStatusInProgress, updated.Status)

	// Update of a missing task is a 404
	resp = env.request(t, http.MethodPut, "/api/tasks/9999", token, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// List
	resp = env.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decodeBody[[]taskResponse](t, resp)
	require.Len(t, items, 1)

	// Delete is idempotent
	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTasksMergeCalendarEvents(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginAs(t, "arjo@fydy.ai")

	env.events.events = []calendar.Event{{
		ID: "cal_abc12345", Title: "Standup", Status: "EVENT",
		EventStart: "2026-08-27T10:00:00Z", AssignedBy: "calendar",
	}}

	resp := env.request(t, http.MethodPost, "/api/tasks", token, map[string]string{"title": "Real task"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Events come first on the default view.
	resp = env.request(t, http.MethodGet, "/api/tasks", token, nil)
	items := decodeBody[[]map[string]any](t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, "cal_abc12345", items[0]["id"])
	assert.Equal(t, "EVENT", items[0]["status"])
	assert.Equal(t, "Real task", items[1]["title"])

	// Status filters other than pending exclude events.
	resp = env.request(t, http.MethodGet, "/api/tasks?status=done", token, nil)
	items = decodeBody[[]map[string]any](t, resp)
	assert.Empty(t, items)

	resp = env.request(t, http.MethodGet, "/api/tasks?status=pending", token, nil)
	items = decodeBody[[]map[string]any](t, resp)
	assert.Len(t, items, 2)
}

func TestReadsAPI(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginAs(t, "arjo@fydy.ai")

	resp := env.request(t, http.MethodPost, "/api/reads", token, map[string]string{
		"title": "Attention Is All You Need",
		"url":   "https://arxiv.org/abs/1706.03762",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[readResponse](t, resp)
	assert.Equal(t, store.ReadStatusUnread, created.Status)
	assert.Equal(t, "arjo@fydy.ai", created.AddedBy)

	resp = env.request(t, http.MethodPut, fmt.Sprintf("/api/reads/%d", created.ID), token,
		map[string]string{"status": store.ReadStatusReading})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[readResponse](t, resp)
	assert.Equal(t, store.ReadStatusReading, updated.Status)
	assert.Equal(t, "Attention Is All You Need", updated.Title)

	// Status filter
	resp = env.request(t, http.MethodGet, "/api/reads?status=reading", token, nil)
	items := decodeBody[[]readResponse](t, resp)
	require.Len(t, items, 1)

	resp = env.request(t, http.MethodGet, "/api/reads?status=read", token, nil)
	items = decodeBody[[]readResponse](t, resp)
	assert.Empty(t, items)

	resp = env.request(t, http.MethodDelete, fmt.Sprintf("/api/reads/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestChatAPI(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginAs(t, "arjo@fydy.ai")

	env.chatter.reply = &assistant.Reply{
		Response: "Added it.",
		Actions:  []map[string]any{{"type": "added"}},
	}

	resp := env.request(t, http.MethodPost, "/api/chat", token, map[string]string{"message": "add a task"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decodeBody[assistant.Reply](t, resp)
	assert.Equal(t, "Added it.", reply.Response)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "add a task", env.chatter.last)

	// Empty message
	resp = env.request(t, http.MethodPost, "/api/chat", token, map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Assistant failure surfaces as a 500
	env.chatter.err = errors.New("model unavailable")
	resp = env.request(t, http.MethodPost, "/api/chat", token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestChatHistoryAndClear(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginAs(t, "arjo@fydy.ai")

	require.NoError(t, env.store.AppendChatMessage(context.Background(), &store.ChatMessage{
		Role: store.ChatRoleUser, Content: "hello", UserEmail: "arjo@fydy.ai",
	}))
	require.NoError(t, env.store.AppendChatMessage(context.Background(), &store.ChatMessage{
		Role: store.ChatRoleAssistant, Content: "**bold** reply", UserEmail: "arjo@fydy.ai",
	}))

	resp := env.request(t, http.MethodGet, "/api/chat/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decodeBody[[]chatHistoryItem](t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, "hello", items[0].Content)
	assert.Contains(t, items[1].HTML, "<strong>bold</strong>")

	resp = env.request(t, http.MethodPost, "/api/chat/clear", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/chat/history", token, nil)
	items = decodeBody[[]chatHistoryItem](t, resp)
	assert.Empty(t, items)
}

func TestReadsStatusDebugEndpoint(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.CreateRead(context.Background(), &store.Read{
		Title: "Some Paper", AddedBy: "arjo@fydy.ai",
	}))

	// No session required.
	resp := env.request(t, http.MethodGet, "/api/debug/reads-status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(1), body["count"])
	recent, ok := body["recent"].([]any)
	require.True(t, ok)
	require.Len(t, recent, 1)
}

func TestClearAllChatsMaintenance(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.AppendChatMessage(context.Background(), &store.ChatMessage{
		Role: store.ChatRoleUser, Content: "hello", UserEmail: "arjo@fydy.ai",
	}))

	// Wrong token pretends the route does not exist.
	resp := env.request(t, http.MethodPost, "/api/internal/clear-all-chats/wrong", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/internal/clear-all-chats/maint-token", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]bool](t, resp)
	assert.True(t, body["cleared"])

	msgs, err := env.store.ListChatMessages(context.Background(), "arjo@fydy.ai", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClearAllChatsDisabledWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	st := env.store
	sessions := auth.NewSessions([]byte("test-secret"), time.Hour)
	login := auth.NewService(st, sessions, mail.NewLogSender(), auth.Config{BaseURL: "http://x"})
	srv := New(st, login, env.chatter, nil, Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/internal/clear-all-chats/anything", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}
