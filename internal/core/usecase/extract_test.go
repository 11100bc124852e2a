package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/core/derivation"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

func TestExtractDecodesStructuredRecord(t *testing.T) {
	gen := &generatorFake{jsonOutputs: []string{
		`{"zoning_district":"CS","max_height_ft":"60 ft","permitted_uses":["retail"],"unknown_key":1}`,
	}}
	uc := NewExtractFactsUseCase(gen, 1)

	result, err := uc.Extract(context.Background(), []string{"first snippet", "second snippet"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	facts, ok := result.Facts()
	if !ok {
		t.Fatalf("expected structured result")
	}
	if district, _ := facts.ZoningDistrict.Get(); district != "CS" {
		t.Fatalf("unexpected district %q", district)
	}

	prompt := gen.prompts[0]
	if !strings.HasPrefix(prompt, "Extract zoning fields as JSON matching this JSON Schema:\n") {
		t.Fatalf("unexpected prompt prefix: %q", prompt[:60])
	}
	if !strings.Contains(prompt, "first snippet\n\nsecond snippet") {
		t.Fatalf("expected joined snippets in prompt")
	}
	if !strings.Contains(prompt, `"zoning_district"`) || !strings.HasSuffix(prompt, "Return ONLY valid JSON.") {
		t.Fatalf("expected schema and closing instruction in prompt")
	}
}

func TestExtractAcceptsFencedJSON(t *testing.T) {
	gen := &generatorFake{jsonOutputs: []string{"```json\n{\"zoning_district\": \"RS5\"}\n```"}}
	uc := NewExtractFactsUseCase(gen, 1)

	result, err := uc.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.IsStructured() {
		t.Fatalf("expected fenced object to decode")
	}
}

func TestExtractFallsBackToRawText(t *testing.T) {
	raw := "I could not find any zoning information."
	gen := &generatorFake{jsonOutputs: []string{raw}}
	uc := NewExtractFactsUseCase(gen, 1)

	result, err := uc.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	got, ok := result.Raw()
	if !ok || got != raw {
		t.Fatalf("expected verbatim fallback, got %q (%v)", got, ok)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[domain.UnstructuredKey] != raw {
		t.Fatalf("expected only the fallback key, got %v", decoded)
	}
}

func TestExtractKeepsRecordWhenOneFieldHasUnsupportedShape(t *testing.T) {
	raw := `{"zoning_district":"CS","prohibited_uses":["restaurant"],"max_height_ft":{"value":60,"unit":"ft"}}`
	uc := NewExtractFactsUseCase(&generatorFake{jsonOutputs: []string{raw}}, 1)

	result, err := uc.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	facts, ok := result.Facts()
	if !ok {
		t.Fatalf("expected structured result, got raw %q", raw)
	}
	if district, _ := facts.ZoningDistrict.Get(); district != "CS" {
		t.Fatalf("unexpected district %q", district)
	}
	if !facts.MaxHeightFt.IsZero() {
		t.Fatalf("expected max_height_ft to be absent, got %v", facts.MaxHeightFt.Raw())
	}

	feasibility := derivation.DeriveFeasibility(facts, "restaurant", derivation.LotDimensions{}, nil)
	if feasibility.Rating != domain.RatingNoGo {
		t.Fatalf("expected prohibited use to stay No-Go, got %s %v", feasibility.Rating, feasibility.Reasons)
	}
}

func TestDecodeFactRecordReportsDroppedFields(t *testing.T) {
	record, dropped, err := decodeFactRecord(`{"permitted_uses":["retail",{"x":1}],"max_stories":[3],"floor_area_ratio":2}`)
	if err != nil {
		t.Fatalf("decodeFactRecord() error = %v", err)
	}
	if len(dropped) != 2 || dropped[0] != "max_stories" || dropped[1] != "permitted_uses" {
		t.Fatalf("unexpected dropped fields %v", dropped)
	}
	if far, ok := record.FloorAreaRatio.Raw().(float64); !ok || far != 2 {
		t.Fatalf("expected floor_area_ratio 2, got %v", record.FloorAreaRatio.Raw())
	}

	if _, _, err := decodeFactRecord(`["not", "an", "object"]`); err == nil {
		t.Fatalf("expected a non-object to fail")
	}
}

func TestExtractRetriesUpToMaxAttempts(t *testing.T) {
	gen := &generatorFake{jsonOutputs: []string{"not json", `{"zoning_district":"OR20"}`}}
	uc := NewExtractFactsUseCase(gen, 2)

	result, err := uc.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.IsStructured() || len(gen.prompts) != 2 {
		t.Fatalf("expected structured result on second attempt, prompts=%d", len(gen.prompts))
	}
}

func TestExtractPropagatesGeneratorFailure(t *testing.T) {
	errModel := errors.New("connection refused")
	uc := NewExtractFactsUseCase(&generatorFake{err: errModel}, 3)

	if _, err := uc.Extract(context.Background(), []string{"x"}); !errors.Is(err, errModel) {
		t.Fatalf("expected generator error, got %v", err)
	}
}
