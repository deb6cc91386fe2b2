package plaintext

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

var supportedExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
}

type Extractor struct {
	storage ports.CorpusStorage
}

func NewExtractor(storage ports.CorpusStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Supports(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile) (string, error) {
	reader, err := e.storage.Open(ctx, file.Name)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%s is not valid UTF-8", file.Name)
	}

	text := strings.TrimPrefix(string(raw), "\ufeff")
	return strings.TrimSpace(text), nil
}
