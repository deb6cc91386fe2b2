package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	answersTotal      *prometheus.CounterVec
	answerFailures    *prometheus.CounterVec
	maxSimilarity     prometheus.Histogram
	answerConfidence  prometheus.Histogram
	retrievedPassages prometheus.Histogram
	stageDuration     *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	indexedPassages   prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "policyqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "policyqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "policyqa",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policyqa",
			Subsystem:   "http",
			Name:        "rejected_total",
			Help:        "Requests rejected before reaching the answer pipeline.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "decisions_total",
			Help:        "Answer decisions by outcome and refusal reason.",
			ConstLabels: constLabels,
		},
		[]string{"outcome", "reason"},
	)
	answerFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "failures_total",
			Help:        "Queries that ended in an error, by error kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	maxSimilarity := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "max_similarity",
			Help:        "Highest retrieval similarity per query, as seen by the confidence gate.",
			Buckets:     []float64{0, 0.1, 0.2, 0.25, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	answerConfidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "confidence",
			Help:        "Reported confidence of grounded answers.",
			Buckets:     []float64{0.25, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	retrievedPassages := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "retrieved_passages",
			Help:        "Distribution of retrieved passages per query.",
			Buckets:     []float64{0, 1, 2, 3, 4, 5, 8, 13},
			ConstLabels: constLabels,
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "policyqa",
			Subsystem:   "answer",
			Name:        "stage_duration_seconds",
			Help:        "Answer pipeline stage duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "policyqa",
			Subsystem:   "resilience",
			Name:        "circuit_breaker_open",
			Help:        "1 when the breaker of an outbound operation is not closed.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)
	indexedPassages := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "policyqa",
			Subsystem:   "index",
			Name:        "passages",
			Help:        "Passages loaded into the vector index at startup.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		answersTotal,
		answerFailures,
		maxSimilarity,
		answerConfidence,
		retrievedPassages,
		stageDuration,
		breakerState,
		indexedPassages,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		service:           service,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		rejectedTotal:     rejectedTotal,
		answersTotal:      answersTotal,
		answerFailures:    answerFailures,
		maxSimilarity:     maxSimilarity,
		answerConfidence:  answerConfidence,
		retrievedPassages: retrievedPassages,
		stageDuration:     stageDuration,
		breakerState:      breakerState,
		indexedPassages:   indexedPassages,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch path {
	case "/v1/answer", "/healthz", "/metrics", "/openapi.yaml":
		return path
	default:
		return "other"
	}
}

// RecordAnswerTrace makes the metrics an answer trace sink.
func (m *HTTPServerMetrics) RecordAnswerTrace(_ context.Context, trace domain.AnswerTrace) {
	m.stageDuration.WithLabelValues("retrieval").Observe(trace.RetrievalDuration.Seconds())
	if trace.SynthesizerCalled {
		m.stageDuration.WithLabelValues("generation").Observe(trace.GenerationDuration.Seconds())
	}
	m.stageDuration.WithLabelValues("total").Observe(trace.TotalDuration.Seconds())

	if trace.Outcome == domain.OutcomeError {
		kind := trace.ErrorKind
		if kind == "" {
			kind = "internal"
		}
		m.answerFailures.WithLabelValues(kind).Inc()
		return
	}

	m.retrievedPassages.Observe(float64(trace.Retrieved))
	if trace.Retrieved > 0 {
		m.maxSimilarity.Observe(trace.MaxSimilarity)
	}

	reason := string(trace.Reason)
	if reason == "" {
		reason = "none"
	}
	m.answersTotal.WithLabelValues(trace.Outcome, reason).Inc()
	if trace.Outcome == string(domain.OutcomeAnswer) {
		m.answerConfidence.Observe(trace.Confidence)
	}
}

func (m *HTTPServerMetrics) ObserveBreakerState(operation, _ string, to string) {
	value := 1.0
	if to == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *HTTPServerMetrics) SetIndexedPassages(count int) {
	m.indexedPassages.Set(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
