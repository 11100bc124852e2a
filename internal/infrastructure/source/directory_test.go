package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/extractor/html"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/extractor/plaintext"
)

type listerFake struct {
	files map[string]string
	keys  []string
}

func (f *listerFake) List(context.Context) ([]string, error) {
	return f.keys, nil
}

func (f *listerFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.files[key])), nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, io.Reader) ([]domain.Document, error) {
	return nil, errors.New("encrypted pdf")
}

func TestDocumentsWalksInOrderAndCountsSkipped(t *testing.T) {
	files := &listerFake{
		keys: []string{"codes/title17.pdf", "empty.txt", "notes.md", "page.HTML", "photo.jpg"},
		files: map[string]string{
			"empty.txt": "   ",
			"notes.md":  "# Parking\nOne space per unit.",
			"page.HTML": "<p>Height 60 ft</p>",
			"photo.jpg": "binary",
		},
	}
	src := NewDirectorySource(files, map[string]Extractor{
		".pdf":  failingExtractor{},
		".txt":  plaintext.NewExtractor(),
		".md":   plaintext.NewExtractor(),
		".html": html.NewExtractor(),
	})

	docs, skipped, err := src.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if skipped != 2 {
		t.Fatalf("expected failed pdf and empty txt to be skipped, got %d", skipped)
	}
	if len(docs) != 2 || docs[0].Origin != "notes.md" || docs[1].Origin != "page.HTML" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if docs[1].Text != "Height 60 ft" || docs[1].Page != 0 {
		t.Fatalf("unexpected html document %+v", docs[1])
	}
}
