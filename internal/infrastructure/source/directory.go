package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// Extractor turns one source file into Documents.
type Extractor interface {
	Extract(ctx context.Context, origin string, body io.Reader) ([]domain.Document, error)
}

// Lister enumerates and opens stored source files.
type Lister interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DirectorySource walks stored files in lexical key order and extracts them
// by extension. Files with an unknown extension are ignored; files that fail
// to extract or carry no text count as skipped.
type DirectorySource struct {
	files      Lister
	extractors map[string]Extractor
}

func NewDirectorySource(files Lister, extractors map[string]Extractor) *DirectorySource {
	normalized := make(map[string]Extractor, len(extractors))
	for ext, extractor := range extractors {
		normalized[strings.ToLower(ext)] = extractor
	}
	return &DirectorySource{files: files, extractors: normalized}
}

func (s *DirectorySource) Documents(ctx context.Context) ([]domain.Document, int, error) {
	keys, err := s.files.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list source documents: %w", err)
	}

	var (
		docs    []domain.Document
		skipped int
	)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		extractor, ok := s.extractors[strings.ToLower(path.Ext(key))]
		if !ok {
			continue
		}

		extracted, err := s.extract(ctx, key, extractor)
		if err != nil {
			skipped++
			slog.Warn("source_document_skipped", "key", key, "error", err)
			continue
		}
		if len(extracted) == 0 {
			skipped++
			slog.Warn("source_document_empty", "key", key)
			continue
		}
		docs = append(docs, extracted...)
	}
	return docs, skipped, nil
}

func (s *DirectorySource) extract(ctx context.Context, key string, extractor Extractor) ([]domain.Document, error) {
	body, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return extractor.Extract(ctx, path.Base(key), body)
}
