package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

// PublishingTraceSink forwards answer traces to the audit transport.
// Publish failures are logged and never affect the answer.
type PublishingTraceSink struct {
	publisher ports.TracePublisher
	logger    *slog.Logger
}

func NewPublishingTraceSink(publisher ports.TracePublisher, logger *slog.Logger) *PublishingTraceSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingTraceSink{publisher: publisher, logger: logger}
}

func (s *PublishingTraceSink) RecordAnswerTrace(ctx context.Context, trace domain.AnswerTrace) {
	if err := s.publisher.PublishAnswerTrace(ctx, trace); err != nil {
		s.logger.Warn("answer_trace_publish_failed", "trace_id", trace.ID, "error", err)
	}
}

var errMissingTraceID = errors.New("trace id is empty")

type RecordAuditUseCase struct {
	repo ports.AuditRepository
}

func NewRecordAuditUseCase(repo ports.AuditRepository) *RecordAuditUseCase {
	return &RecordAuditUseCase{repo: repo}
}

// RecordTrace decodes one published trace and stores it.
func (uc *RecordAuditUseCase) RecordTrace(ctx context.Context, payload []byte) error {
	var trace domain.AnswerTrace
	if err := json.Unmarshal(payload, &trace); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode answer trace", err)
	}
	if trace.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "decode answer trace", errMissingTraceID)
	}
	if err := uc.repo.Save(ctx, trace); err != nil {
		return domain.WrapError(domain.ErrTemporary, "save answer trace", err)
	}
	return nil
}
