package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

// Index is a brute-force vector index held in process memory.
// Vectors are expected to be L2-normalized, so the dot product is the cosine similarity.
type Index struct {
	mu       sync.RWMutex
	passages []domain.Passage
	vectors  [][]float32
}

func New() *Index {
	return &Index{}
}

func (i *Index) Reset(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.passages = nil
	i.vectors = nil
	return nil
}

func (i *Index) Upsert(_ context.Context, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages/vectors mismatch")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	size := -1
	if len(i.vectors) > 0 {
		size = len(i.vectors[0])
	}
	for _, vector := range vectors {
		if size >= 0 && len(vector) != size {
			return fmt.Errorf("vector size %d does not match index size %d", len(vector), size)
		}
		size = len(vector)
	}

	for idx, vector := range vectors {
		stored := make([]float32, len(vector))
		copy(stored, vector)
		i.passages = append(i.passages, passages[idx])
		i.vectors = append(i.vectors, stored)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedPassage, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.vectors) == 0 || limit <= 0 {
		return []domain.RetrievedPassage{}, nil
	}
	if len(queryVector) != len(i.vectors[0]) {
		return nil, fmt.Errorf("query vector size %d does not match index size %d", len(queryVector), len(i.vectors[0]))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]domain.RetrievedPassage, 0, len(i.vectors))
	for idx, vector := range i.vectors {
		scored = append(scored, domain.RetrievedPassage{
			Passage:    i.passages[idx],
			Similarity: dot(queryVector, vector),
		})
	}

	// ties keep corpus order
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Similarity > scored[b].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.passages)
}

func dot(a, b []float32) float64 {
	var sum float64
	for idx := range a {
		sum += float64(a[idx]) * float64(b[idx])
	}
	return sum
}
