package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

// Extractor reads the text layer of PDF policies. Scanned PDFs without text yield "".
type Extractor struct {
	storage ports.CorpusStorage
}

func NewExtractor(storage ports.CorpusStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Supports(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
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
	return extractText(raw)
}

func extractText(raw []byte) (text string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
