package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "throttled", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "unavailable", err: fmt.Errorf("wrapped: %w", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}), retryable: true, record: true},
		{name: "not found", err: &HTTPStatusError{StatusCode: http.StatusNotFound}},
		{name: "deadline", err: context.DeadlineExceeded},
		{name: "open circuit", err: gobreaker.ErrOpenState, retryable: true, record: true},
		{name: "decode", err: errors.New("decode embed response: unexpected EOF"), record: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := ClassifyHTTPError(tt.err)
			if class.Retryable != tt.retryable || class.RecordFailure != tt.record {
				t.Fatalf("ClassifyHTTPError(%v) = %+v", tt.err, class)
			}
		})
	}
}

func TestWrapTemporary(t *testing.T) {
	transient := &HTTPStatusError{Service: "qdrant", Operation: "search", StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}
	err := WrapTemporary("qdrant search", transient, ClassifyHTTPError)
	if !domain.IsKind(err, domain.ErrTemporary) || !IsHTTPStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected temporary 502, got %v", err)
	}
	if again := WrapTemporary("qdrant search", err, ClassifyHTTPError); again != err {
		t.Fatalf("already temporary error must be returned as is, got %v", again)
	}

	permanent := &HTTPStatusError{StatusCode: http.StatusBadRequest}
	if err := WrapTemporary("ollama embed", permanent, ClassifyHTTPError); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary, got %v", err)
	}
	if err := WrapTemporary("ollama embed", nil, ClassifyHTTPError); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewHTTPStatusErrorIncludesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	http.Error(rec, "model unavailable", http.StatusServiceUnavailable)

	err := NewHTTPStatusError("ollama", "generate", rec.Result())
	if err.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", err.StatusCode)
	}
	if !strings.HasPrefix(err.Error(), "ollama generate status: ") || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
