package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/auth"
	"github.com/Abhinay1235/aichatbot-service/internal/chat"
	"github.com/Abhinay1235/aichatbot-service/internal/config"
	"github.com/Abhinay1235/aichatbot-service/internal/schema"
	"github.com/Abhinay1235/aichatbot-service/internal/session"
)

type fakeTurnRunner struct {
	result chat.TurnResult
	err    error

	sessionID string
	question  string
}

func (f *fakeTurnRunner) RunTurn(_ context.Context, sessionID, question string) (chat.TurnResult, error) {
	f.sessionID = sessionID
	f.question = question
	if f.err != nil {
		return chat.TurnResult{}, f.err
	}
	return f.result, nil
}

type fakeSessionStore struct {
	infos     []session.Info
	histories map[string][]session.Turn
	removed   []string
}

func (f *fakeSessionStore) List() []session.Info { return f.infos }

func (f *fakeSessionStore) Full(id string) []session.Turn { return f.histories[id] }

func (f *fakeSessionStore) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func testConfig(authRequired bool) config.Config {
	cfg := config.Config{}
	cfg.Service.Name = "chatbot-api"
	cfg.Auth.Required = authRequired
	return cfg
}

func testDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table:    "trips",
		RowCount: 1000,
		Columns:  []schema.Column{{Name: "booking_id", Type: "VARCHAR"}},
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["service"] != "chatbot-api" {
		t.Fatalf("service = %v", payload["service"])
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{
		Readiness: func(context.Context) error { return context.DeadlineExceeded },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatEndpointRunsTurn(t *testing.T) {
	runner := &fakeTurnRunner{result: chat.TurnResult{
		SessionID: "s1",
		State:     chat.StateRecorded,
		Answer:    "There were 42 rides.",
		SQL:       "SELECT COUNT(*) FROM trips LIMIT 1000",
		RowCount:  1,
	}}
	handler := NewHandler(testConfig(false), Dependencies{Chat: runner})

	body := strings.NewReader(`{"session_id":"s1","question":"how many rides?"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var result chat.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Answer != "There were 42 rides." || result.State != chat.StateRecorded {
		t.Fatalf("unexpected result %+v", result)
	}
	if runner.question != "how many rides?" || runner.sessionID != "s1" {
		t.Fatalf("runner saw %q / %q", runner.sessionID, runner.question)
	}
}

func TestChatEndpointFailedTurnStillOK(t *testing.T) {
	runner := &fakeTurnRunner{result: chat.TurnResult{
		SessionID: "s1",
		State:     chat.StateFailed,
		Answer:    "I'm sorry, something went wrong.",
		ErrorKind: chat.KindExecutionError,
	}}
	handler := NewHandler(testConfig(false), Dependencies{Chat: runner})

	body := strings.NewReader(`{"session_id":"s1","question":"how many rides?"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result chat.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.ErrorKind != chat.KindExecutionError {
		t.Fatalf("error_kind = %q", result.ErrorKind)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeTurnRunner{}})

	cases := []string{
		`{"session_id":"s1"}`,
		`{"question":"   "}`,
		`{not json`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestSchemaEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Schema: testDescriptor()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var descriptor schema.Descriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &descriptor); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if descriptor.Table != "trips" || len(descriptor.Columns) != 1 {
		t.Fatalf("unexpected descriptor %+v", descriptor)
	}
}

func TestSessionEndpoints(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeSessionStore{
		infos: []session.Info{{ID: "s1", Turns: 2, UpdatedAt: now}},
		histories: map[string][]session.Turn{
			"s1": {
				{Role: session.RoleUser, Content: "q", Timestamp: now},
				{Role: session.RoleAssistant, Content: "a", Timestamp: now},
			},
		},
	}
	handler := NewHandler(testConfig(false), Dependencies{Sessions: store})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"s1"`) {
		t.Fatalf("list: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"turns"`) {
		t.Fatalf("get: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if len(store.removed) != 1 || store.removed[0] != "s1" {
		t.Fatalf("removed = %v", store.removed)
	}
}

func TestAuthRequiredProtectsEndpoints(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("chatkey:bot:chat,adminkey:ops:chat|admin,auditkey:audit:admin")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator: %v", err)
	}
	store := &fakeSessionStore{histories: map[string][]session.Turn{}}
	handler := NewHandler(testConfig(true), Dependencies{
		Chat:           &fakeTurnRunner{result: chat.TurnResult{State: chat.StateRecorded}},
		Sessions:       store,
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	// no key
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"question":"q"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", rec.Code)
	}

	// chat role may chat
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-API-Key", "chatkey")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat key: status = %d", rec.Code)
	}

	// admin-only key may not chat
	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-API-Key", "auditkey")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin-only key chat: status = %d", rec.Code)
	}

	// chat role may not delete
	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil)
	req.Header.Set("X-API-Key", "chatkey")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("chat key delete: status = %d", rec.Code)
	}

	// admin role may delete
	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil)
	req.Header.Set("X-API-Key", "adminkey")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin key delete: status = %d", rec.Code)
	}

	// health stays public
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
}
