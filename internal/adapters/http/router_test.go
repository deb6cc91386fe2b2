package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/observability/logging"
	"github.com/kirillkom/policy-qa/internal/observability/metrics"
)

type answererFake struct {
	result    domain.AnswerResult
	err       error
	calls     int
	lastQuery string
	requestID string
}

func (f *answererFake) Answer(ctx context.Context, query string) (domain.AnswerResult, error) {
	f.calls++
	f.lastQuery = query
	f.requestID = logging.RequestIDFromContext(ctx)
	return f.result, f.err
}

func newTestHandler(t *testing.T, cfg config.Config, answerer *answererFake) http.Handler {
	t.Helper()
	rt, err := NewRouter(cfg, answerer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.NewHTTPServerMetrics("api-test")),
	)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func postAnswer(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestAnswerReturnsGroundedAnswer(t *testing.T) {
	answerer := &answererFake{result: domain.Grounded(
		"Products can be returned within 30 days of purchase.",
		[]string{"returns.txt"},
		0.82,
	)}
	handler := newTestHandler(t, config.Config{}, answerer)

	res := postAnswer(handler, `{"query":"What is the refund window?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get(refusalReasonHeader) != "" {
		t.Fatalf("answers must not carry a refusal reason header")
	}

	body := decodeBody(t, res)
	if body["outcome"] != "answer" {
		t.Fatalf("unexpected outcome %v", body["outcome"])
	}
	if body["answer"] != "Products can be returned within 30 days of purchase." {
		t.Fatalf("unexpected answer %v", body["answer"])
	}
	if body["confidence"] != 0.82 {
		t.Fatalf("unexpected confidence %v", body["confidence"])
	}
	sources, _ := body["sources"].([]any)
	if len(sources) != 1 || sources[0] != "returns.txt" {
		t.Fatalf("unexpected sources %v", body["sources"])
	}
	if answerer.lastQuery != "What is the refund window?" {
		t.Fatalf("unexpected query passed to answerer: %q", answerer.lastQuery)
	}
}

func TestAnswerRefusalUsesCanonicalSentence(t *testing.T) {
	answerer := &answererFake{result: domain.Refuse(domain.RefusalLowConfidence)}
	handler := newTestHandler(t, config.Config{}, answerer)

	res := postAnswer(handler, `{"query":"What is the CEO's favorite color?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get(refusalReasonHeader); got != "low_confidence" {
		t.Fatalf("expected refusal reason header, got %q", got)
	}

	body := decodeBody(t, res)
	if body["outcome"] != "refusal" {
		t.Fatalf("unexpected outcome %v", body["outcome"])
	}
	if body["answer"] != domain.CanonicalRefusal {
		t.Fatalf("unexpected refusal text %v", body["answer"])
	}
	if _, ok := body["confidence"]; ok {
		t.Fatalf("refusals must omit confidence")
	}
	if sources, _ := body["sources"].([]any); len(sources) != 0 {
		t.Fatalf("refusals must not list sources, got %v", body["sources"])
	}
	if strings.Contains(res.Body.String(), "low_confidence") {
		t.Fatalf("refusal reason leaked into the body")
	}
}

func TestAnswerRejectsInvalidBodies(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"query":`,
		"missing query": `{}`,
		"empty query":   `{"query":""}`,
		"wrong type":    `{"query":42}`,
		"unknown field": `{"query":"refunds?","limit":3}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			answerer := &answererFake{}
			handler := newTestHandler(t, config.Config{}, answerer)

			res := postAnswer(handler, body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
			if answerer.calls != 0 {
				t.Fatalf("answerer must not be called for invalid bodies")
			}
		})
	}
}

func TestAnswerMapsErrorsToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("query is empty")), http.StatusBadRequest},
		{"retrieval", domain.WrapError(domain.ErrRetrieval, "retrieve", errors.New("index unavailable")), http.StatusBadGateway},
		{"generation", domain.WrapError(domain.ErrGeneration, "synthesize", errors.New("model error")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrGeneration, "synthesize", domain.WrapError(domain.ErrTemporary, "ollama.generate", errors.New("503"))), http.StatusServiceUnavailable},
		{"deadline", domain.WrapError(domain.ErrRetrieval, "retrieve", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, &answererFake{err: tc.err})

			res := postAnswer(handler, `{"query":"refund window"}`)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			if decodeBody(t, res)["error"] == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestAnswerRejectsNonPost(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &answererFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/answer", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	answerer := &answererFake{result: domain.Refuse(domain.RefusalNoEvidence)}
	handler := newTestHandler(t, config.Config{}, answerer)

	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"query":"refunds?"}`))
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if answerer.requestID != "req-42" {
		t.Fatalf("expected request id in answer context, got %q", answerer.requestID)
	}
}

func TestHealthzOpenAPIAndMetricsEndpoints(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &answererFake{})

	for path, wantContent := range map[string]string{
		"/healthz":      `"ok"`,
		"/openapi.yaml": "/v1/answer",
		"/metrics":      "policyqa_http_in_flight_requests",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.Code)
		}
		if !strings.Contains(res.Body.String(), wantContent) {
			t.Fatalf("%s: expected body to contain %q", path, wantContent)
		}
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}
