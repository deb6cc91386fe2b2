package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

// Storage exposes a flat corpus directory. It never writes to it.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data"
	}
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("stat corpus dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", basePath)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) List(_ context.Context) ([]domain.SourceFile, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	files := make([]domain.SourceFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, domain.SourceFile{Name: entry.Name(), Size: info.Size()})
	}
	return files, nil
}

func (s *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if name == "" || name != filepath.Base(name) || name == ".." {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open corpus file", errors.New("name must be a plain file name"))
	}
	f, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}
