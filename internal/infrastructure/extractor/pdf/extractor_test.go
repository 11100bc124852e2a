package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractRejectsMalformedFile(t *testing.T) {
	docs, err := NewExtractor().Extract(context.Background(), "broken.pdf", strings.NewReader("%PDF-1.4\nnot really a pdf"))
	if err == nil {
		t.Fatalf("expected malformed pdf to fail, got %d documents", len(docs))
	}
	if !strings.Contains(err.Error(), "broken.pdf") {
		t.Fatalf("expected origin in error, got %v", err)
	}
}

func TestPageTextRecoversParserPanic(t *testing.T) {
	text, err := pageText(func() (string, error) {
		panic("malformed content stream")
	})
	if err == nil || text != "" {
		t.Fatalf("expected recovered error, got %q, %v", text, err)
	}
	if !strings.Contains(err.Error(), "malformed content stream") {
		t.Fatalf("expected panic value in error, got %v", err)
	}
}

func TestPageTextPassesThroughResult(t *testing.T) {
	errFont := errors.New("missing font")
	if _, err := pageText(func() (string, error) { return "", errFont }); !errors.Is(err, errFont) {
		t.Fatalf("expected page error, got %v", err)
	}
	if text, err := pageText(func() (string, error) { return "17.12.020", nil }); err != nil || text != "17.12.020" {
		t.Fatalf("pageText() = %q, %v", text, err)
	}
}
