package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

func TestAnswerComposesQueryAndCitations(t *testing.T) {
	retriever := &retrieverFake{chunks: []domain.ScoredChunk{
		scored("title17.pdf", 12, 0, 0, 0.9, "Parking"),
		scored("notes.txt", 0, 1, 0, 0.8, "Height"),
	}}
	answers := &answerFake{text: "Four spaces per 1000 sq ft."}
	uc := NewZoningUseCase(retriever, &extractorFake{}, answers, 6)

	got, err := uc.Answer(context.Background(), ports.QARequest{Address: "100 Broadway", Question: "parking?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if retriever.queries[0] != "100 Broadway: parking?" || retriever.ks[0] != 6 {
		t.Fatalf("unexpected retrieval call %q k=%d", retriever.queries[0], retriever.ks[0])
	}
	if answers.question != "100 Broadway: parking?" || len(answers.chunks) != 2 {
		t.Fatalf("unexpected generator input %q", answers.question)
	}
	if got.Text != answers.text || len(got.Sources) != 2 {
		t.Fatalf("unexpected answer %+v", got)
	}
	if got.Sources[0].Origin != "title17.pdf" || got.Sources[0].Page == nil || *got.Sources[0].Page != 12 {
		t.Fatalf("unexpected first citation %+v", got.Sources[0])
	}
	if got.Sources[1].Page != nil {
		t.Fatalf("expected no page for unpaginated source")
	}
}

func TestSnapshotTruncatesSnippetsAndRendersMarkdown(t *testing.T) {
	long := strings.Repeat("s", 2000)
	retriever := &retrieverFake{chunks: []domain.ScoredChunk{
		scored("title17.pdf", 3, 0, 0, 0.9, long),
		scored("title17.pdf", 4, 0, 1, 0.8, "b"),
		scored("title17.pdf", 5, 0, 2, 0.7, "c"),
		scored("title17.pdf", 6, 0, 3, 0.6, "d"),
		scored("title17.pdf", 7, 0, 4, 0.5, "e"),
	}}
	extractor := &extractorFake{result: domain.StructuredExtraction(domain.FactRecord{
		ZoningDistrict: domain.NewText("CS"),
		MaxHeightFt:    domain.NumberMeasure(60),
	})}
	uc := NewZoningUseCase(retriever, extractor, &answerFake{}, 6)

	got, err := uc.Snapshot(context.Background(), "100 Broadway")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if retriever.queries[0] != "100 Broadway: zoning district, height, setbacks, parking" || retriever.ks[0] != 4 {
		t.Fatalf("unexpected retrieval %q k=%d", retriever.queries[0], retriever.ks[0])
	}
	if len(extractor.snippets) != 4 || len([]rune(extractor.snippets[0])) != 1200 {
		t.Fatalf("expected 4 snippets capped at 1200, got %d", len(extractor.snippets))
	}
	for _, want := range []string{
		"# Zoning Snapshot",
		"**Address:** 100 Broadway",
		"- **zoning_district**: CS",
		"- **max_height_ft**: 60",
		"- title17.pdf, p.3",
	} {
		if !strings.Contains(got.Markdown, want) {
			t.Fatalf("markdown missing %q:\n%s", want, got.Markdown)
		}
	}
	if len(got.Sources) != 4 {
		t.Fatalf("expected 4 sources, got %d", len(got.Sources))
	}
}

func TestEnvelopeValidatesLotDimensions(t *testing.T) {
	retriever := &retrieverFake{}
	uc := NewZoningUseCase(retriever, &extractorFake{}, &answerFake{}, 6)

	_, err := uc.Envelope(context.Background(), ports.EnvelopeRequest{Address: "x", LotWidthFt: 0, LotDepthFt: 100})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(retriever.queries) != 0 {
		t.Fatalf("expected no retrieval for invalid input")
	}
}

func TestEnvelopeDerivesFromExtractedFacts(t *testing.T) {
	retriever := &retrieverFake{chunks: []domain.ScoredChunk{scored("title17.pdf", 9, 0, 0, 1, "standards")}}
	extractor := &extractorFake{result: domain.StructuredExtraction(domain.FactRecord{
		FrontSetbackFt: domain.NumberMeasure(20),
		SideSetbackFt:  domain.NumberMeasure(10),
		RearSetbackFt:  domain.NumberMeasure(20),
		LotCoverageMax: domain.NumberMeasure(60),
	})}
	uc := NewZoningUseCase(retriever, extractor, &answerFake{}, 6)

	got, err := uc.Envelope(context.Background(), ports.EnvelopeRequest{Address: "x", LotWidthFt: 100, LotDepthFt: 150})
	if err != nil {
		t.Fatalf("Envelope() error = %v", err)
	}
	if retriever.ks[0] != 5 || !strings.HasSuffix(retriever.queries[0], "lot coverage, FAR, parking") {
		t.Fatalf("unexpected retrieval %q k=%d", retriever.queries[0], retriever.ks[0])
	}
	if got.Buildable.MaxFootprint != 8800 || got.Buildable.CoverageCap == nil || *got.Buildable.CoverageCap != 9000 {
		t.Fatalf("unexpected buildable area %+v", got.Buildable)
	}
	if len(got.Sources) != 1 || got.Sources[0].Origin != "title17.pdf" {
		t.Fatalf("expected provenance to flow into the report, got %+v", got.Sources)
	}
}

func TestEnvelopeWithUnstructuredFactsUsesDefaults(t *testing.T) {
	extractor := &extractorFake{result: domain.UnstructuredExtraction("no json")}
	uc := NewZoningUseCase(&retrieverFake{}, extractor, &answerFake{}, 6)

	got, err := uc.Envelope(context.Background(), ports.EnvelopeRequest{Address: "x", LotWidthFt: 50, LotDepthFt: 100})
	if err != nil {
		t.Fatalf("Envelope() error = %v", err)
	}
	if got.Buildable.MaxFootprint != 5000 || got.Facts.IsStructured() {
		t.Fatalf("expected full-lot footprint with raw facts, got %+v", got)
	}
}

func TestGoNoGoAppliesSetbackOverride(t *testing.T) {
	extractor := &extractorFake{result: domain.StructuredExtraction(domain.FactRecord{
		PermittedUses:  domain.TextList{"restaurant"},
		FrontSetbackFt: domain.NumberMeasure(10),
		SideSetbackFt:  domain.NumberMeasure(60),
		RearSetbackFt:  domain.NumberMeasure(10),
	})}
	retriever := &retrieverFake{}
	uc := NewZoningUseCase(retriever, extractor, &answerFake{}, 6)

	width, depth := 100.0, 150.0
	got, err := uc.GoNoGo(context.Background(), ports.FeasibilityRequest{
		Address:     "x",
		ProposedUse: "Restaurant",
		LotWidthFt:  &width,
		LotDepthFt:  &depth,
	})
	if err != nil {
		t.Fatalf("GoNoGo() error = %v", err)
	}
	if got.Rating != domain.RatingNoGo || len(got.Reasons) != 2 {
		t.Fatalf("expected No-Go with two reasons, got %+v", got.Feasibility)
	}
	if retriever.ks[0] != 5 {
		t.Fatalf("expected 5 snippets, got %d", retriever.ks[0])
	}
}

func TestGoNoGoRequiresProposedUse(t *testing.T) {
	uc := NewZoningUseCase(&retrieverFake{}, &extractorFake{}, &answerFake{}, 6)
	_, err := uc.GoNoGo(context.Background(), ports.FeasibilityRequest{Address: "x"})
	if !domain.IsKind(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "proposed_use") {
		t.Fatalf("expected proposed_use validation error, got %v", err)
	}
}
