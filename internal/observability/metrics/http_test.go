package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

func TestRecordAnswerTraceCountsDecisions(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordAnswerTrace(context.Background(), domain.AnswerTrace{
		Outcome:           "answer",
		Retrieved:         4,
		MaxSimilarity:     0.81,
		Confidence:        0.81,
		SynthesizerCalled: true,
		TotalDuration:     time.Second,
	})
	m.RecordAnswerTrace(context.Background(), domain.AnswerTrace{
		Outcome:       "refusal",
		Reason:        domain.RefusalLowConfidence,
		Retrieved:     4,
		MaxSimilarity: 0.1,
	})
	m.RecordAnswerTrace(context.Background(), domain.AnswerTrace{
		Outcome:   domain.OutcomeError,
		ErrorKind: "generation",
	})

	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("answer", "none")); got != 1 {
		t.Fatalf("answer decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("refusal", "low_confidence")); got != 1 {
		t.Fatalf("low_confidence refusals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.answerFailures.WithLabelValues("generation")); got != 1 {
		t.Fatalf("generation failures = %v, want 1", got)
	}
}

func TestObserveBreakerState(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveBreakerState("ollama.generate", "closed", "open")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("ollama.generate")); got != 1 {
		t.Fatalf("breaker gauge = %v, want 1", got)
	}
	m.ObserveBreakerState("ollama.generate", "half-open", "closed")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("ollama.generate")); got != 0 {
		t.Fatalf("breaker gauge = %v, want 0", got)
	}
}

func TestMiddlewareNormalizesUnknownPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path/123", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "other", "404")); got != 1 {
		t.Fatalf("requests_total{path=other} = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "policyqa_http_requests_total") {
		t.Fatalf("expected exported request counter")
	}
}
