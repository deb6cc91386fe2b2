package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
	"github.com/kirillkom/policy-qa/internal/observability/metrics"
)

const (
	refusalReasonHeader = "X-Refusal-Reason"
	maxRequestBodyBytes = 64 << 10
	backpressureWait    = 250 * time.Millisecond
)

type Router struct {
	cfg      config.Config
	answerer ports.PolicyAnswerer
	contract *contract
	logger   *slog.Logger
	metrics  *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithMetrics mounts /metrics and instruments every request.
func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(cfg config.Config, answerer ports.PolicyAnswerer, opts ...RouterOption) (*Router, error) {
	c, err := loadContract()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:      cfg,
		answerer: answerer,
		contract: c,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	var limiter *rate.Limiter
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := rt.cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst)
	}

	var answer http.Handler = http.HandlerFunc(rt.answer)
	answer = backpressureMiddleware(answer, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordRejected)
	answer = rateLimitMiddleware(answer, limiter, rt.recordRejected)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.yaml", serveOpenAPI)
	mux.Handle("/v1/answer", answer)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	handler = requestIDMiddleware(handler)
	return recoverMiddleware(handler, rt.logger)
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	Outcome    string   `json:"outcome"`
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	if err := rt.contract.validateAnswerRequest(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req answerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := rt.answerer.Answer(r.Context(), req.Query)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeError(w, status, publicErrorMessage(status, err))
		return
	}

	writeJSON(w, http.StatusOK, toAnswerResponse(w, result))
}

func toAnswerResponse(w http.ResponseWriter, result domain.AnswerResult) answerResponse {
	if result.IsRefusal() {
		w.Header().Set(refusalReasonHeader, string(result.Reason))
		return answerResponse{
			Outcome: string(domain.OutcomeRefusal),
			Answer:  domain.CanonicalRefusal,
			Sources: []string{},
		}
	}

	confidence := result.Confidence
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return answerResponse{
		Outcome:    string(domain.OutcomeAnswer),
		Answer:     result.Text,
		Sources:    sources,
		Confidence: &confidence,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
