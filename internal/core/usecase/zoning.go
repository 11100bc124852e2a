package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/derivation"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

// Snippet windows per operation: how many retrieved chunks feed the
// extractor and how many characters of each.
const (
	snapshotSnippets      = 4
	envelopeSnippets      = 5
	feasibilitySnippets   = 5
	snapshotSnippetLen    = 1200
	envelopeSnippetLen    = 1200
	feasibilitySnippetLen = 1200
)

type ZoningUseCase struct {
	retriever ports.Retriever
	extractor ports.FactExtractor
	answers   ports.AnswerGenerator
	matcher   derivation.UseMatcher
	topK      int
}

func NewZoningUseCase(
	retriever ports.Retriever,
	extractor ports.FactExtractor,
	answers ports.AnswerGenerator,
	topK int,
) *ZoningUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ZoningUseCase{
		retriever: retriever,
		extractor: extractor,
		answers:   answers,
		matcher:   derivation.SubstringMatcher,
		topK:      topK,
	}
}

func (uc *ZoningUseCase) Answer(ctx context.Context, req ports.QARequest) (*domain.Answer, error) {
	if err := requireFields("answer zoning question", map[string]string{
		"address":  req.Address,
		"question": req.Question,
	}); err != nil {
		return nil, err
	}

	question := req.Address + ": " + req.Question
	chunks, err := uc.retriever.Retrieve(ctx, question, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	text, err := uc.answers.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{
		Text:    text,
		Sources: domain.CitationsOf(chunks),
	}, nil
}

func (uc *ZoningUseCase) Snapshot(ctx context.Context, address string) (*domain.SnapshotReport, error) {
	if err := requireFields("zoning snapshot", map[string]string{"address": address}); err != nil {
		return nil, err
	}

	query := address + ": zoning district, height, setbacks, parking"
	chunks, facts, err := uc.retrieveFacts(ctx, query, snapshotSnippets, snapshotSnippetLen)
	if err != nil {
		return nil, err
	}

	return &domain.SnapshotReport{
		Address:  address,
		Facts:    facts,
		Markdown: renderSnapshotMarkdown(address, facts, chunks),
		Sources:  domain.CitationsOf(chunks),
	}, nil
}

func (uc *ZoningUseCase) Envelope(ctx context.Context, req ports.EnvelopeRequest) (*domain.EnvelopeReport, error) {
	if err := requireFields("envelope", map[string]string{"address": req.Address}); err != nil {
		return nil, err
	}
	if req.LotWidthFt <= 0 || req.LotDepthFt <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "envelope", errors.New("lot_width_ft and lot_depth_ft must be positive"))
	}

	query := req.Address + ": zoning district, height, setbacks, lot coverage, FAR, parking"
	chunks, facts, err := uc.retrieveFacts(ctx, query, envelopeSnippets, envelopeSnippetLen)
	if err != nil {
		return nil, err
	}

	return &domain.EnvelopeReport{
		Envelope: derivation.DeriveEnvelope(facts.Record(), req.LotWidthFt, req.LotDepthFt),
		Address:  req.Address,
		Facts:    facts,
		Sources:  domain.CitationsOf(chunks),
	}, nil
}

func (uc *ZoningUseCase) GoNoGo(ctx context.Context, req ports.FeasibilityRequest) (*domain.FeasibilityReport, error) {
	if err := requireFields("go/no-go", map[string]string{
		"address":      req.Address,
		"proposed_use": req.ProposedUse,
	}); err != nil {
		return nil, err
	}

	query := req.Address + ": permitted uses, conditional uses, prohibited uses, setbacks, parking"
	chunks, facts, err := uc.retrieveFacts(ctx, query, feasibilitySnippets, feasibilitySnippetLen)
	if err != nil {
		return nil, err
	}

	lot := derivation.LotDimensions{WidthFt: req.LotWidthFt, DepthFt: req.LotDepthFt}
	return &domain.FeasibilityReport{
		Feasibility: derivation.DeriveFeasibility(facts.Record(), req.ProposedUse, lot, uc.matcher),
		Address:     req.Address,
		Facts:       facts,
		Sources:     domain.CitationsOf(chunks),
	}, nil
}

func (uc *ZoningUseCase) retrieveFacts(
	ctx context.Context,
	query string,
	count, maxLen int,
) ([]domain.ScoredChunk, domain.ExtractionResult, error) {
	return retrieveAndExtract(ctx, uc.retriever, uc.extractor, query, count, maxLen)
}

func retrieveAndExtract(
	ctx context.Context,
	retriever ports.Retriever,
	extractor ports.FactExtractor,
	query string,
	count, maxLen int,
) ([]domain.ScoredChunk, domain.ExtractionResult, error) {
	chunks, err := retriever.Retrieve(ctx, query, count)
	if err != nil {
		return nil, domain.ExtractionResult{}, fmt.Errorf("retrieve context: %w", err)
	}

	facts, err := extractor.Extract(ctx, snippetsOf(chunks, maxLen))
	if err != nil {
		return nil, domain.ExtractionResult{}, fmt.Errorf("extract facts: %w", err)
	}
	return chunks, facts, nil
}

// snippetsOf cuts each chunk text to at most maxLen characters.
func snippetsOf(chunks []domain.ScoredChunk, maxLen int) []string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, truncateRunes(chunk.Text, maxLen))
	}
	return out
}

func truncateRunes(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

func renderSnapshotMarkdown(address string, facts domain.ExtractionResult, chunks []domain.ScoredChunk) string {
	lines := []string{
		"# Zoning Snapshot",
		"**Address:** " + address,
		"## Key Facts:",
	}
	if raw, ok := facts.Raw(); ok {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", domain.UnstructuredKey, raw))
	} else {
		for _, entry := range facts.Record().Entries() {
			lines = append(lines, fmt.Sprintf("- **%s**: %s", entry.Name, entry.Value))
		}
	}

	lines = append(lines, "\n## Sources:")
	for _, chunk := range chunks {
		if chunk.Page > 0 {
			lines = append(lines, fmt.Sprintf("- %s, p.%d", chunk.Origin, chunk.Page))
			continue
		}
		lines = append(lines, "- "+chunk.Origin)
	}
	return strings.Join(lines, "\n")
}

func requireFields(operation string, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return domain.WrapError(
		domain.ErrInvalidInput,
		operation,
		fmt.Errorf("%s is required", strings.Join(missing, ", ")),
	)
}
