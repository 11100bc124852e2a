package ports

import (
	"context"
	"io"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// DocumentSource supplies the documents a Chunk Index is built from.
// Documents whose text cannot be extracted are reported through skipped and
// must not abort the walk.
type DocumentSource interface {
	Documents(ctx context.Context) (docs []domain.Document, skipped int, err error)
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Chunker splits document text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text. Build time and query
// time must use the same Embedder configuration.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ChunkIndex persists (chunk, vector) pairs under one collection.
type ChunkIndex interface {
	// Replace drops any existing collection and stores the given pairs.
	Replace(ctx context.Context, chunks []domain.Chunk, vectors [][]float32, manifest domain.IndexManifest) error
	// Search returns up to limit chunks ranked by similarity to the query
	// vector. It fails with domain.ErrIndexNotFound when nothing was built.
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
	// Manifest returns the manifest of the built index or
	// domain.ErrIndexNotFound.
	Manifest(ctx context.Context) (domain.IndexManifest, error)
}

// TextGenerator is the generative model.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// AnswerGenerator writes the narrative QA answer over retrieved chunks.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error)
}

// GeoLookup resolves addresses and parcels against GIS layers.
type GeoLookup interface {
	Geocode(ctx context.Context, address string) (domain.Location, error)
	ParcelAt(ctx context.Context, point domain.Coordinates) (domain.Feature, error)
	ZoningAt(ctx context.Context, point domain.Coordinates) (domain.ZoningDistrict, error)
	Overlays(ctx context.Context, parcel domain.Feature) ([]map[string]any, error)
	FloodHazards(ctx context.Context, parcel domain.Feature) ([]map[string]any, error)
}

// RebuildQueue carries index rebuild requests to the worker.
type RebuildQueue interface {
	PublishRebuildRequested(ctx context.Context, reason string) error
	SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// BuildJournal records index builds.
type BuildJournal interface {
	Start(ctx context.Context, build *domain.IndexBuild) error
	Finish(ctx context.Context, build *domain.IndexBuild) error
	Latest(ctx context.Context, collection string) (*domain.IndexBuild, error)
}

// LedgerReader parses a budget or draw sheet.
type LedgerReader interface {
	Read(ctx context.Context, filename string, body io.Reader) ([]domain.LedgerLine, error)
}
