package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// Extractor yields one Document per PDF page with 1-based page numbers.
// Pages without extractable text, or whose text cannot be decoded, are left
// out.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, origin string, body io.Reader) (docs []domain.Document, err error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf %s: %v", origin, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", origin, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(func() (string, error) { return page.GetPlainText(nil) })
		if err != nil {
			slog.Warn("pdf_page_skipped", "origin", origin, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{Origin: origin, Page: i, Text: text})
	}
	return docs, nil
}

// pageText runs extract and turns a parser panic into an error.
func pageText(extract func() (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse page: %v", r)
		}
	}()
	return extract()
}
