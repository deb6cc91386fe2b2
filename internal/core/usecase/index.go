package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// IndexCorpusUseCase loads the corpus, splits it into passages and fills the vector index.
// It runs once, before any query is served.
type IndexCorpusUseCase struct {
	storage    ports.CorpusStorage
	extractors []ports.TextExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	index      ports.VectorIndex
	batchSize  int
	logger     *slog.Logger
}

func NewIndexCorpusUseCase(
	storage ports.CorpusStorage,
	extractors []ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	batchSize int,
	logger *slog.Logger,
) *IndexCorpusUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexCorpusUseCase{
		storage:    storage,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Build replaces the index content and returns the number of indexed passages.
func (uc *IndexCorpusUseCase) Build(ctx context.Context) (int, error) {
	files, err := uc.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list corpus: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	if err := uc.index.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	passages, err := uc.loadPassages(ctx, files)
	if err != nil {
		return 0, err
	}
	if len(passages) == 0 {
		uc.logger.Warn("corpus_empty", "files", len(files))
		return 0, nil
	}

	for start := 0; start < len(passages); start += uc.batchSize {
		end := min(start+uc.batchSize, len(passages))
		if err := uc.indexBatch(ctx, passages[start:end]); err != nil {
			return 0, err
		}
	}

	uc.logger.Info("corpus_indexed", "files", len(files), "passages", len(passages))
	return len(passages), nil
}

func (uc *IndexCorpusUseCase) loadPassages(ctx context.Context, files []domain.SourceFile) ([]domain.Passage, error) {
	passages := make([]domain.Passage, 0, len(files))
	for _, file := range files {
		extractor := uc.extractorFor(file.Name)
		if extractor == nil {
			uc.logger.Debug("corpus_file_skipped", "file", file.Name, "reason", "unsupported type")
			continue
		}

		text, err := extractor.Extract(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", file.Name, err)
		}

		chunks := uc.chunker.Split(text)
		if len(chunks) == 0 {
			uc.logger.Warn("corpus_file_skipped", "file", file.Name, "reason", "no text")
			continue
		}
		for i, chunk := range chunks {
			passages = append(passages, domain.Passage{
				ID:     fmt.Sprintf("%s#%d", file.Name, i),
				Text:   chunk,
				Source: file.Name,
			})
		}
	}
	return passages, nil
}

func (uc *IndexCorpusUseCase) indexBatch(ctx context.Context, batch []domain.Passage) error {
	texts := make([]string, 0, len(batch))
	for _, p := range batch {
		texts = append(texts, p.Text)
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(
			domain.ErrRetrieval,
			"embed passages",
			errors.New("embedding count mismatch"),
		)
	}

	normalized := make([][]float32, 0, len(vectors))
	for _, vector := range vectors {
		normalized = append(normalized, normalizeVector(vector))
	}

	if err := uc.index.Upsert(ctx, batch, normalized); err != nil {
		return fmt.Errorf("upsert passages: %w", err)
	}
	return nil
}

func (uc *IndexCorpusUseCase) extractorFor(name string) ports.TextExtractor {
	for _, extractor := range uc.extractors {
		if extractor.Supports(name) {
			return extractor
		}
	}
	return nil
}
