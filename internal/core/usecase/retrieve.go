package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

const DefaultRetrievalK = 4

type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	defaultK int
	timeout  time.Duration
}

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex, defaultK int, timeout time.Duration) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultRetrievalK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		defaultK: defaultK,
		timeout:  timeout,
	}
}

// Retrieve returns at most k passages ordered by descending similarity.
// An empty index yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedPassage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is empty"))
	}
	if k <= 0 {
		k = r.defaultK
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}
	if len(queryVector) == 0 {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", errors.New("empty query embedding"))
	}

	passages, err := r.index.Search(ctx, normalizeVector(queryVector), k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "search index", err)
	}
	if passages == nil {
		return []domain.RetrievedPassage{}, nil
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Similarity > passages[j].Similarity
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}
