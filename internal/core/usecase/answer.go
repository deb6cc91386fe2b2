package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
	"github.com/kirillkom/policy-qa/internal/observability/logging"
)

// AnswerUseCase runs retrieve, gate, synthesize and validate for one query.
// It keeps no per-query state and is safe for concurrent use.
type AnswerUseCase struct {
	retriever   *Retriever
	gate        *ConfidenceGate
	synthesizer *Synthesizer
	validator   *Validator
	k           int
	logger      *slog.Logger
	sinks       []ports.AnswerTraceSink
	now         func() time.Time
}

type AnswerOption func(*AnswerUseCase)

func WithAnswerLogger(logger *slog.Logger) AnswerOption {
	return func(uc *AnswerUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func WithTraceSinks(sinks ...ports.AnswerTraceSink) AnswerOption {
	return func(uc *AnswerUseCase) {
		for _, sink := range sinks {
			if sink != nil {
				uc.sinks = append(uc.sinks, sink)
			}
		}
	}
}

func NewAnswerUseCase(
	retriever *Retriever,
	gate *ConfidenceGate,
	synthesizer *Synthesizer,
	validator *Validator,
	k int,
	opts ...AnswerOption,
) *AnswerUseCase {
	uc := &AnswerUseCase{
		retriever:   retriever,
		gate:        gate,
		synthesizer: synthesizer,
		validator:   validator,
		k:           k,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Answer returns a grounded answer or a refusal. Retrieval and generation failures are
// returned as errors and are never turned into refusals.
func (uc *AnswerUseCase) Answer(ctx context.Context, query string) (domain.AnswerResult, error) {
	start := uc.now()
	trace := domain.AnswerTrace{
		ID:        uuid.NewString(),
		RequestID: logging.RequestIDFromContext(ctx),
		Query:     query,
		CreatedAt: start.UTC(),
	}

	passages, err := uc.retriever.Retrieve(ctx, query, uc.k)
	trace.RetrievalDuration = uc.now().Sub(start)
	if err != nil {
		return domain.AnswerResult{}, uc.fail(ctx, &trace, start, err)
	}
	trace.Retrieved = len(passages)

	decision := uc.gate.Evaluate(passages)
	trace.MaxSimilarity = decision.MaxSimilarity
	trace.Confidence = ReportedConfidence(decision.Confidence)
	if !decision.Proceed {
		return uc.finish(ctx, &trace, start, domain.Refuse(decision.Reason)), nil
	}

	generationStart := uc.now()
	raw, err := uc.synthesizer.Synthesize(ctx, query, passages)
	trace.SynthesizerCalled = true
	trace.GenerationDuration = uc.now().Sub(generationStart)
	if err != nil {
		return domain.AnswerResult{}, uc.fail(ctx, &trace, start, err)
	}

	result := uc.validator.Validate(raw, passages, decision.Confidence)
	return uc.finish(ctx, &trace, start, result), nil
}

func (uc *AnswerUseCase) finish(ctx context.Context, trace *domain.AnswerTrace, start time.Time, result domain.AnswerResult) domain.AnswerResult {
	trace.Outcome = string(result.Outcome)
	trace.Reason = result.Reason
	trace.Sources = result.Sources
	if trace.Sources == nil {
		trace.Sources = []string{}
	}
	trace.TotalDuration = uc.now().Sub(start)

	uc.logger.Info("answer_decision", uc.traceAttrs(trace)...)
	uc.emit(ctx, *trace)
	return result
}

func (uc *AnswerUseCase) fail(ctx context.Context, trace *domain.AnswerTrace, start time.Time, err error) error {
	trace.Outcome = domain.OutcomeError
	trace.ErrorKind = domain.ErrorKind(err)
	trace.Error = err.Error()
	trace.Sources = []string{}
	trace.TotalDuration = uc.now().Sub(start)

	attrs := append(uc.traceAttrs(trace), "error_kind", trace.ErrorKind, "error", trace.Error)
	if domain.IsKind(err, domain.ErrInvalidInput) || errors.Is(err, context.Canceled) {
		uc.logger.Warn("answer_failed", attrs...)
	} else {
		uc.logger.Error("answer_failed", attrs...)
	}
	uc.emit(ctx, *trace)
	return err
}

func (uc *AnswerUseCase) emit(ctx context.Context, trace domain.AnswerTrace) {
	for _, sink := range uc.sinks {
		sink.RecordAnswerTrace(context.WithoutCancel(ctx), trace)
	}
}

func (uc *AnswerUseCase) traceAttrs(trace *domain.AnswerTrace) []any {
	return []any{
		"trace_id", trace.ID,
		"request_id", trace.RequestID,
		"outcome", trace.Outcome,
		"reason", string(trace.Reason),
		"retrieved", trace.Retrieved,
		"max_similarity", trace.MaxSimilarity,
		"threshold", uc.gate.Threshold(),
		"synthesizer_called", trace.SynthesizerCalled,
		"retrieval_ms", float64(trace.RetrievalDuration.Microseconds()) / 1000.0,
		"generation_ms", float64(trace.GenerationDuration.Microseconds()) / 1000.0,
		"total_ms", float64(trace.TotalDuration.Microseconds()) / 1000.0,
	}
}
