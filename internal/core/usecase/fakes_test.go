package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

type embedderFake struct {
	mu          sync.Mutex
	queryVector []float32
	queryErr    error
	embedErr    error
	dropOne     bool
	queries     []string
	batches     [][]string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vectors := make([][]float32, 0, len(texts))
	for range texts {
		vectors = append(vectors, []float32{3, 4})
	}
	if f.dropOne && len(vectors) > 0 {
		vectors = vectors[1:]
	}
	return vectors, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryVector == nil {
		return []float32{0, 2}, nil
	}
	return f.queryVector, nil
}

type indexFake struct {
	results     []domain.RetrievedPassage
	searchErr   error
	resetCalls  int
	upserted    []domain.Passage
	vectors     [][]float32
	queryVector []float32
	limit       int
}

func (f *indexFake) Reset(context.Context) error {
	f.resetCalls++
	return nil
}

func (f *indexFake) Upsert(_ context.Context, passages []domain.Passage, vectors [][]float32) error {
	f.upserted = append(f.upserted, passages...)
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *indexFake) Search(_ context.Context, queryVector []float32, limit int) ([]domain.RetrievedPassage, error) {
	f.queryVector = queryVector
	f.limit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.RetrievedPassage, len(f.results))
	copy(out, f.results)
	return out, nil
}

type generatorFake struct {
	mu      sync.Mutex
	output  string
	err     error
	calls   int
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *generatorFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type traceSinkFake struct {
	mu     sync.Mutex
	traces []domain.AnswerTrace
}

func (f *traceSinkFake) RecordAnswerTrace(_ context.Context, trace domain.AnswerTrace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, trace)
}

type storageFake struct {
	files   []domain.SourceFile
	listErr error
}

func (f *storageFake) List(context.Context) ([]domain.SourceFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, io.EOF
}

type extractorFake struct {
	texts map[string]string
	err   error
}

func (f *extractorFake) Supports(name string) bool {
	_, ok := f.texts[name]
	return ok
}

func (f *extractorFake) Extract(_ context.Context, file domain.SourceFile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[file.Name], nil
}

// lineChunker emits one chunk per non-empty text; enough to drive the indexer.
type lineChunker struct{}

func (lineChunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

func retrieved(source string, similarity float64) domain.RetrievedPassage {
	return domain.RetrievedPassage{
		Passage: domain.Passage{
			ID:     source + "#0",
			Text:   "passage from " + source,
			Source: source,
		},
		Similarity: similarity,
	}
}

// blockingEmbedderFake and blockingGeneratorFake hold the call until the context ends.
type blockingEmbedderFake struct {
	embedderFake
}

func (f *blockingEmbedderFake) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type blockingGeneratorFake struct {
	generatorFake
}

func (f *blockingGeneratorFake) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	<-ctx.Done()
	return "", ctx.Err()
}
