package ports

import (
	"context"
	"io"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

// CorpusStorage lists and opens the files of the policy corpus.
type CorpusStorage interface {
	List(ctx context.Context) ([]domain.SourceFile, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from one corpus file.
type TextExtractor interface {
	Supports(name string) bool
	Extract(ctx context.Context, file domain.SourceFile) (string, error)
}

// Chunker splits text into passages.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores passage vectors and performs nearest-neighbour search.
// Search returns passages ordered by descending similarity.
type VectorIndex interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedPassage, error)
}

// TextGenerator completes a prompt at zero temperature.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerTraceSink receives one trace per answered query.
type AnswerTraceSink interface {
	RecordAnswerTrace(ctx context.Context, trace domain.AnswerTrace)
}

// TracePublisher ships answer traces to the audit worker.
type TracePublisher interface {
	PublishAnswerTrace(ctx context.Context, trace domain.AnswerTrace) error
}

// TraceSubscriber delivers published traces to a handler until ctx is done.
type TraceSubscriber interface {
	SubscribeAnswerTraces(ctx context.Context, handler func(context.Context, []byte) error) error
}

// AuditRepository stores answer traces.
type AuditRepository interface {
	Save(ctx context.Context, trace domain.AnswerTrace) error
	ListRecent(ctx context.Context, limit int) ([]domain.AnswerTrace, error)
}
