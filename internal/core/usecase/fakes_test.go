package usecase

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

type sourceFake struct {
	docs    []domain.Document
	skipped int
	err     error
}

func (f *sourceFake) Documents(context.Context) ([]domain.Document, int, error) {
	return f.docs, f.skipped, f.err
}

// wordChunker emits one chunk per blank-line separated paragraph.
type wordChunker struct{}

func (wordChunker) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

type embedderFake struct {
	mu         sync.Mutex
	batchSizes []int
	queries    []string
	failAfter  int
	err        error
	queryErr   error
	vector     []float32
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && len(f.batchSizes) >= f.failAfter {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{1, 0}, nil
}

func (f *embedderFake) Model() string { return "embed-fake" }

type indexFake struct {
	manifest    *domain.IndexManifest
	manifestErr error
	replaced    []domain.Chunk
	vectors     [][]float32
	replaceErr  error
	replaceN    int
	results     []domain.ScoredChunk
	searchErr   error
	searchLimit int
}

func (f *indexFake) Replace(_ context.Context, chunks []domain.Chunk, vectors [][]float32, manifest domain.IndexManifest) error {
	f.replaceN++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = chunks
	f.vectors = vectors
	f.manifest = &manifest
	return nil
}

func (f *indexFake) Search(_ context.Context, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	f.searchLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.ScoredChunk, len(f.results))
	copy(out, f.results)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *indexFake) Manifest(context.Context) (domain.IndexManifest, error) {
	if f.manifestErr != nil {
		return domain.IndexManifest{}, f.manifestErr
	}
	if f.manifest == nil {
		return domain.IndexManifest{}, domain.WrapError(domain.ErrIndexNotFound, "manifest", io.EOF)
	}
	return *f.manifest, nil
}

type journalFake struct {
	started  []domain.IndexBuild
	finished []domain.IndexBuild
	latest   *domain.IndexBuild
	err      error
}

func (f *journalFake) Start(_ context.Context, build *domain.IndexBuild) error {
	f.started = append(f.started, *build)
	return f.err
}

func (f *journalFake) Finish(_ context.Context, build *domain.IndexBuild) error {
	f.finished = append(f.finished, *build)
	return nil
}

func (f *journalFake) Latest(context.Context, string) (*domain.IndexBuild, error) {
	if f.latest == nil {
		return nil, domain.ErrNotFound
	}
	return f.latest, nil
}

type retrieverFake struct {
	chunks  []domain.ScoredChunk
	err     error
	queries []string
	ks      []int
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

type extractorFake struct {
	result   domain.ExtractionResult
	err      error
	snippets []string
}

func (f *extractorFake) Extract(_ context.Context, snippets []string) (domain.ExtractionResult, error) {
	f.snippets = snippets
	if f.err != nil {
		return domain.ExtractionResult{}, f.err
	}
	return f.result, nil
}

type generatorFake struct {
	jsonOutputs []string
	text        string
	err         error
	prompts     []string
}

func (f *generatorFake) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *generatorFake) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.jsonOutputs) == 0 {
		return "", nil
	}
	out := f.jsonOutputs[0]
	if len(f.jsonOutputs) > 1 {
		f.jsonOutputs = f.jsonOutputs[1:]
	}
	return out, nil
}

type answerFake struct {
	question string
	chunks   []domain.ScoredChunk
	text     string
}

func (f *answerFake) GenerateAnswer(_ context.Context, question string, chunks []domain.ScoredChunk) (string, error) {
	f.question = question
	f.chunks = chunks
	return f.text, nil
}

type geoFake struct {
	location   domain.Location
	geocodeErr error
	parcel     domain.Feature
	parcelErr  error
	district   domain.ZoningDistrict
	zoningErr  error
	overlays   []map[string]any
	floods     []map[string]any
}

func (f *geoFake) Geocode(context.Context, string) (domain.Location, error) {
	return f.location, f.geocodeErr
}

func (f *geoFake) ParcelAt(context.Context, domain.Coordinates) (domain.Feature, error) {
	return f.parcel, f.parcelErr
}

func (f *geoFake) ZoningAt(context.Context, domain.Coordinates) (domain.ZoningDistrict, error) {
	return f.district, f.zoningErr
}

func (f *geoFake) Overlays(context.Context, domain.Feature) ([]map[string]any, error) {
	return f.overlays, nil
}

func (f *geoFake) FloodHazards(context.Context, domain.Feature) ([]map[string]any, error) {
	return f.floods, nil
}

type queueFake struct {
	reasons []string
	err     error
}

func (f *queueFake) PublishRebuildRequested(_ context.Context, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *queueFake) SubscribeRebuildRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

func scored(origin string, page, doc, chunk int, score float64, text string) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:            origin + "-" + text,
			Origin:        origin,
			Page:          page,
			DocumentIndex: doc,
			ChunkIndex:    chunk,
			Text:          text,
		},
		Score: score,
	}
}

func builtWith(model string) *domain.IndexManifest {
	return &domain.IndexManifest{Collection: "zoning", EmbedModel: model, Chunks: 1, Documents: 1}
}
