package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/auth"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/config"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/lifecycle"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/observability"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/quota"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/search"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/settings"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := zap.NewNop()
	store := kvstore.NewInMemoryStore()
	b := bus.New()

	repo := chat.NewRepository(store, logger)
	gate := quota.NewGate(store, 5, logger)
	gate.Bind(b)
	authSvc := auth.NewService(store, b, logger)
	themes := settings.NewThemes(store, b, logger)
	controller := lifecycle.NewController(repo, 0, logger)
	controller.Bind(b)
	index := search.NewIndex(repo)
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")

	cfg := config.Config{
		AnonMessageLimit: 5,
		AllowAnyOrigin:   true,
		MetricsNamespace: "test",
	}
	return New(cfg, controller, repo, index, gate, authSvc, themes,
		assistant.NewMockAdapter(), metrics, b, "device-test", logger)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "what is the leave policy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.SessionID == "" || resp.Reply == "" {
		t.Fatalf("incomplete exchange: %+v", resp)
	}
	if resp.Remaining != 4 {
		t.Fatalf("expected 4 anonymous sends left, got %d", resp.Remaining)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/sessions/current", nil)
	var cur struct {
		Session sessionDetail `json:"session"`
	}
	decodeBody(t, rec, &cur)
	if len(cur.Session.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(cur.Session.Messages))
	}
	if cur.Session.Messages[0].Role != chat.RoleUser || cur.Session.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", cur.Session.Messages)
	}
}

func TestQueryRejectsEmptyText(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryQuotaExhaustion(t *testing.T) {
	router := newTestServer(t).Router()

	var last queryResponse
	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": fmt.Sprintf("question %d", i)})
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &last)
	}
	if !last.LimitReached {
		t.Fatalf("expected the fifth exchange to signal the limit")
	}

	rec := doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "one more"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after limit, got %d", rec.Code)
	}
	var fail errorResponse
	decodeBody(t, rec, &fail)
	if fail.Code != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded, got %q", fail.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "remote work policy"})
	var first queryResponse
	decodeBody(t, rec, &first)

	// Starting a new chat saves the previous conversation.
	rec = doJSON(t, router, http.MethodPost, "/v1/sessions/new", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new chat: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	var list struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	decodeBody(t, rec, &list)
	if len(list.Sessions) != 1 {
		t.Fatalf("expected 1 stored session, got %d", len(list.Sessions))
	}
	if list.Sessions[0].ID != first.SessionID {
		t.Fatalf("stored session id mismatch: %q vs %q", list.Sessions[0].ID, first.SessionID)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/sessions/"+first.SessionID+"/load", nil)
	var loaded struct {
		Session  sessionDetail `json:"session"`
		FellBack bool          `json:"fell_back"`
	}
	decodeBody(t, rec, &loaded)
	if loaded.FellBack {
		t.Fatalf("expected a clean load, got fallback")
	}
	if len(loaded.Session.Messages) != 2 {
		t.Fatalf("expected restored transcript, got %d messages", len(loaded.Session.Messages))
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/sessions/missing-id/load", nil)
	decodeBody(t, rec, &loaded)
	if !loaded.FellBack {
		t.Fatalf("expected fallback for an unknown id")
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/sessions/"+first.SessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	decodeBody(t, rec, &list)
	if len(list.Sessions) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(list.Sessions))
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	router := newTestServer(t).Router()

	body := map[string]string{
		"email":     "Pat@example.com",
		"password":  "hunter2hunter2",
		"full_name": "Pat Example",
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "pat@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "pat@example.com", "password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil)
	var me struct {
		Authenticated bool         `json:"authenticated"`
		Profile       auth.Profile `json:"profile"`
	}
	decodeBody(t, rec, &me)
	if !me.Authenticated || me.Profile.Email != "pat@example.com" {
		t.Fatalf("unexpected identity: %+v", me)
	}

	// Logged-in users are not metered.
	rec = doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "benefits question"})
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.Remaining != -1 {
		t.Fatalf("expected unmetered remaining -1, got %d", resp.Remaining)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil)
	decodeBody(t, rec, &me)
	if me.Authenticated {
		t.Fatalf("expected logged-out state after logout")
	}
}

func TestThemeEndpoints(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/settings/theme", nil)
	var theme struct {
		Theme string `json:"theme"`
	}
	decodeBody(t, rec, &theme)
	if theme.Theme != "system" {
		t.Fatalf("expected system default, got %q", theme.Theme)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/settings/theme", map[string]string{"theme": "dark"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put theme: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/settings/theme", nil)
	decodeBody(t, rec, &theme)
	if theme.Theme != "dark" {
		t.Fatalf("expected dark, got %q", theme.Theme)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/settings/theme", map[string]string{"theme": "neon"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown theme, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "how do I request parental leave"})
	doJSON(t, router, http.MethodPost, "/v1/sessions/new", nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/search?q=parental", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Groups []search.Group `json:"groups"`
	}
	decodeBody(t, rec, &result)
	if len(result.Groups) != 1 || result.Groups[0].Bucket != search.BucketToday {
		t.Fatalf("expected one Today group, got %+v", result.Groups)
	}
	if !strings.Contains(result.Groups[0].Entries[0].Snippet, "<mark>parental</mark>") {
		t.Fatalf("expected highlighted snippet, got %q", result.Groups[0].Entries[0].Snippet)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/search?q=", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty query, got %d", rec.Code)
	}
}

func TestClearHistoryWipesEverything(t *testing.T) {
	router := newTestServer(t).Router()

	doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "first chat"})
	doJSON(t, router, http.MethodPost, "/v1/sessions/new", nil)
	doJSON(t, router, http.MethodPost, "/v1/query", map[string]string{"text": "second chat"})

	rec := doJSON(t, router, http.MethodDelete, "/v1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}
	var cleared struct {
		Cleared  bool `json:"cleared"`
		Degraded bool `json:"degraded"`
	}
	decodeBody(t, rec, &cleared)
	if !cleared.Cleared || cleared.Degraded {
		t.Fatalf("unexpected clear result: %+v", cleared)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	var list struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	decodeBody(t, rec, &list)
	if len(list.Sessions) != 0 {
		t.Fatalf("expected no stored sessions after clear, got %d", len(list.Sessions))
	}
}

func TestEscalationEndpoint(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/escalation", map[string]string{
		"subject": "payroll discrepancy",
		"body":    "my march payslip is missing an allowance",
		"email":   "pat@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("escalation: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Ticket string `json:"ticket"`
	}
	decodeBody(t, rec, &resp)
	if resp.Ticket == "" {
		t.Fatalf("expected a ticket id")
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/escalation", map[string]string{"subject": "no body"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a body, got %d", rec.Code)
	}
}

func TestWebsocketExchange(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "system_event" || hello.Event != "connected" {
		t.Fatalf("unexpected hello frame: %+v", hello)
	}

	if err := conn.WriteJSON(map[string]string{"type": "user_message", "text": "expense reports"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != "assistant_reply" || reply.SessionID == "" || reply.Text == "" {
		t.Fatalf("unexpected reply frame: %+v", reply)
	}
}

func TestWebsocketRejectsUnknownFrame(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello json.RawMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "mystery"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var frame struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Type != "error_event" || frame.Code != "bad_message" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
