package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

// ExtractFactsUseCase is the Fact Extractor. Model output that is not a JSON
// object degrades to the unstructured variant carrying the raw text; only
// generator failures are returned as errors.
type ExtractFactsUseCase struct {
	generator   ports.TextGenerator
	maxAttempts int
}

func NewExtractFactsUseCase(generator ports.TextGenerator, maxAttempts int) *ExtractFactsUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &ExtractFactsUseCase{
		generator:   generator,
		maxAttempts: maxAttempts,
	}
}

func (uc *ExtractFactsUseCase) Extract(ctx context.Context, snippets []string) (domain.ExtractionResult, error) {
	schema, err := domain.FactSchema()
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("build fact schema: %w", err)
	}
	prompt := buildExtractionPrompt(schema, snippets)

	var raw string
	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		raw, err = uc.generator.GenerateJSON(ctx, prompt)
		if err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("generate facts: %w", err)
		}

		record, dropped, decodeErr := decodeFactRecord(raw)
		if decodeErr == nil {
			if len(dropped) > 0 {
				slog.Warn("fact_extraction_fields_dropped", "fields", dropped)
			}
			return domain.StructuredExtraction(record), nil
		}
		slog.Warn("fact_extraction_decode_failed",
			"attempt", attempt,
			"max_attempts", uc.maxAttempts,
			"error", decodeErr,
		)
	}
	return domain.UnstructuredExtraction(raw), nil
}

func buildExtractionPrompt(schema string, snippets []string) string {
	return "Extract zoning fields as JSON matching this JSON Schema:\n" +
		schema +
		"\n\nText:\n" +
		strings.Join(snippets, "\n\n") +
		"\n\nReturn ONLY valid JSON."
}

// decodeFactRecord accepts a single JSON object, optionally wrapped in prose
// or a code fence. Unknown keys are ignored. A field whose value has a shape
// the record cannot hold is left absent and reported in dropped; the rest of
// the object is kept.
func decodeFactRecord(raw string) (record domain.FactRecord, dropped []string, err error) {
	candidate := jsonObjectSpan(raw)
	if candidate == "" {
		return domain.FactRecord{}, nil, errors.New("no json object in model output")
	}

	decoder := json.NewDecoder(strings.NewReader(candidate))
	var fields map[string]json.RawMessage
	if err := decoder.Decode(&fields); err != nil {
		return domain.FactRecord{}, nil, fmt.Errorf("decode fact record: %w", err)
	}
	if decoder.More() {
		return domain.FactRecord{}, nil, errors.New("trailing data after fact record")
	}

	for name, value := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{name: value})
		if err != nil {
			return domain.FactRecord{}, nil, fmt.Errorf("re-encode field %s: %w", name, err)
		}
		var field domain.FactRecord
		if err := json.Unmarshal(single, &field); err != nil {
			dropped = append(dropped, name)
			delete(fields, name)
		}
	}
	sort.Strings(dropped)

	kept, err := json.Marshal(fields)
	if err != nil {
		return domain.FactRecord{}, nil, fmt.Errorf("re-encode fact record: %w", err)
	}
	if err := json.Unmarshal(kept, &record); err != nil {
		return domain.FactRecord{}, nil, fmt.Errorf("decode fact record: %w", err)
	}
	return record, dropped, nil
}

func jsonObjectSpan(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}
