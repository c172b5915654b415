package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abhinay1235/aichatbot-service/internal/config"
)

func testLoggerConfig() config.Config {
	return config.Config{
		Profile: config.ProfileTest,
		Service: config.ServiceConfig{Name: "chatbot-api"},
		Observability: config.ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}
}

func TestTraceMiddlewareHonorsCallerTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(TraceHeader, "caller-trace")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "caller-trace" {
		t.Fatalf("trace id in context = %q, want caller-trace", seen)
	}
	if got := rec.Header().Get(TraceHeader); got != "caller-trace" {
		t.Fatalf("response %s = %q, want caller-trace", TraceHeader, got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if seen == "" {
		t.Fatal("expected a generated trace id in the context")
	}
	if got := rec.Header().Get(TraceHeader); got != seen {
		t.Fatalf("response header %q does not match context trace id %q", got, seen)
	}
}

func TestLoggerStampsTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testLoggerConfig(), &buf)

	logger.InfoContext(ContextWithTraceID(t.Context(), "trace-42"), "turn complete")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "trace-42" {
		t.Fatalf("trace_id = %v, want trace-42", line["trace_id"])
	}
	if line["service"] != "chatbot-api" {
		t.Fatalf("service = %v", line["service"])
	}
}

func TestLoggingMiddlewareRecordsStatusAndSize(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testLoggerConfig(), &buf)

	handler := TraceMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/chat", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status = %v, want %d", line["status"], http.StatusTeapot)
	}
	if line["bytes"] != float64(len("short and stout")) {
		t.Fatalf("bytes = %v", line["bytes"])
	}
	if line["trace_id"] == nil || line["trace_id"] == "" {
		t.Fatalf("expected a trace_id on the request line, got %v", line["trace_id"])
	}
}
