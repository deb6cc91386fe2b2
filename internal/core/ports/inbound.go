package ports

import (
	"context"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

// PolicyAnswerer is the inbound contract every surface (HTTP, MCP, TUI, evaluation) binds to.
type PolicyAnswerer interface {
	Answer(ctx context.Context, query string) (domain.AnswerResult, error)
}

// CorpusIndexer builds the vector index from the corpus once at startup.
type CorpusIndexer interface {
	Build(ctx context.Context) (int, error)
}

// AuditRecorder persists answer traces consumed by the worker.
type AuditRecorder interface {
	RecordTrace(ctx context.Context, payload []byte) error
}
