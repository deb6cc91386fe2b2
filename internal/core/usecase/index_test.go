package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

func TestIndexCorpusBuild(t *testing.T) {
	storage := &storageFake{files: []domain.SourceFile{
		{Name: "shipping.txt"},
		{Name: "logo.png"},
		{Name: "returns.txt"},
	}}
	extractor := &extractorFake{texts: map[string]string{
		"returns.txt":  "Refunds take 5-7 business days.",
		"shipping.txt": "We ship within the country only.",
	}}
	embedder := &embedderFake{}
	index := &indexFake{}

	uc := NewIndexCorpusUseCase(storage, []ports.TextExtractor{extractor}, lineChunker{}, embedder, index, 1, nil)
	count, err := uc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 passages, got %d", count)
	}
	if index.resetCalls != 1 {
		t.Fatalf("expected index reset once, got %d", index.resetCalls)
	}
	if index.upserted[0].Source != "returns.txt" || index.upserted[1].Source != "shipping.txt" {
		t.Fatalf("expected passages in file name order, got %+v", index.upserted)
	}
	if index.upserted[0].ID != "returns.txt#0" {
		t.Fatalf("unexpected passage id %q", index.upserted[0].ID)
	}
	if len(embedder.batches) != 2 {
		t.Fatalf("expected batch size 1 to produce 2 embed calls, got %d", len(embedder.batches))
	}
	for _, vector := range index.vectors {
		if math.Abs(float64(vector[0])-0.6) > 1e-6 || math.Abs(float64(vector[1])-0.8) > 1e-6 {
			t.Fatalf("expected normalized vectors, got %v", vector)
		}
	}
}

func TestIndexCorpusEmpty(t *testing.T) {
	embedder := &embedderFake{}
	uc := NewIndexCorpusUseCase(&storageFake{}, nil, lineChunker{}, embedder, &indexFake{}, 0, nil)

	count, err := uc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if count != 0 || len(embedder.batches) != 0 {
		t.Fatalf("expected nothing indexed, got count=%d batches=%d", count, len(embedder.batches))
	}
}

func TestIndexCorpusErrors(t *testing.T) {
	files := []domain.SourceFile{{Name: "returns.txt"}}
	texts := map[string]string{"returns.txt": "Refunds take 5-7 business days."}

	tests := []struct {
		name      string
		storage   *storageFake
		extractor *extractorFake
		embedder  *embedderFake
	}{
		{name: "list", storage: &storageFake{listErr: errors.New("permission denied")}, extractor: &extractorFake{texts: texts}, embedder: &embedderFake{}},
		{name: "extract", storage: &storageFake{files: files}, extractor: &extractorFake{texts: texts, err: errors.New("bad utf-8")}, embedder: &embedderFake{}},
		{name: "embed", storage: &storageFake{files: files}, extractor: &extractorFake{texts: texts}, embedder: &embedderFake{embedErr: errors.New("ollama down")}},
		{name: "count mismatch", storage: &storageFake{files: files}, extractor: &extractorFake{texts: texts}, embedder: &embedderFake{dropOne: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewIndexCorpusUseCase(tt.storage, []ports.TextExtractor{tt.extractor}, lineChunker{}, tt.embedder, &indexFake{}, 8, nil)
			if _, err := uc.Build(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
