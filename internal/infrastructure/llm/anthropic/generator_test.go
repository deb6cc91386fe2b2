package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/infrastructure/resilience"
)

func TestGeneratorSendsZeroTemperature(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"answer\": \"Refunds take five to seven days.\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 12}
		}`))
	}))
	defer server.Close()

	gen := NewGenerator("test-key", "claude-test", 256, nil, option.WithBaseURL(server.URL))
	out, err := gen.Generate(context.Background(), "question?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"answer": "Refunds take five to seven days."}` {
		t.Fatalf("unexpected output %q", out)
	}
	if payload["temperature"] != float64(0) {
		t.Fatalf("expected temperature 0, got %v", payload["temperature"])
	}
	if payload["model"] != "claude-test" {
		t.Fatalf("unexpected model %v", payload["model"])
	}
}

func TestGeneratorOverloadedIsTemporary(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	gen := NewGenerator("test-key", "claude-test", 256, executor, option.WithBaseURL(server.URL))

	_, err := gen.Generate(context.Background(), "question?")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
}

func TestGeneratorWithoutTextReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 0}
		}`))
	}))
	defer server.Close()

	gen := NewGenerator("test-key", "claude-test", 256, nil, option.WithBaseURL(server.URL))
	out, err := gen.Generate(context.Background(), "question?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestGeneratorRateLimitedWithoutExecutorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	gen := NewGenerator("test-key", "claude-test", 256, nil, option.WithBaseURL(server.URL))
	_, err := gen.Generate(context.Background(), "question?")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
