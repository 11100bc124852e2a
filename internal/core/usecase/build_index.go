package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// BuildIndexUseCase is the Chunk Store Builder: it reads every document from
// the source, splits it, embeds the chunks and replaces the collection.
type BuildIndexUseCase struct {
	source     ports.DocumentSource
	chunker    ports.Chunker
	embedder   ports.Embedder
	index      ports.ChunkIndex
	journal    ports.BuildJournal
	collection string
	batchSize  int
	now        func() time.Time

	mu sync.Mutex
}

func NewBuildIndexUseCase(
	source ports.DocumentSource,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.ChunkIndex,
	journal ports.BuildJournal,
	collection string,
	batchSize int,
) *BuildIndexUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if journal == nil {
		journal = noopJournal{}
	}
	return &BuildIndexUseCase{
		source:     source,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		journal:    journal,
		collection: collection,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureBuilt builds the index when no manifest exists or when the manifest
// records another embedding model. It reports whether a build ran.
func (uc *BuildIndexUseCase) EnsureBuilt(ctx context.Context) (bool, error) {
	reason := "index missing"
	manifest, err := uc.index.Manifest(ctx)
	switch {
	case err == nil:
		if manifest.CheckEmbedModel(uc.embedder.Model()) == nil {
			return false, nil
		}
		reason = fmt.Sprintf("embedding model changed from %s to %s", manifest.EmbedModel, uc.embedder.Model())
	case !domain.IsKind(err, domain.ErrIndexNotFound):
		return false, fmt.Errorf("read index manifest: %w", err)
	}

	if _, err := uc.Rebuild(ctx, reason); err != nil {
		return false, err
	}
	return true, nil
}

// Rebuild replaces the whole collection. Concurrent calls in one process are
// serialized.
func (uc *BuildIndexUseCase) Rebuild(ctx context.Context, reason string) (*domain.IndexBuild, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	build := &domain.IndexBuild{
		ID:         uuid.NewString(),
		Collection: uc.collection,
		Status:     domain.BuildRunning,
		StartedAt:  uc.now(),
	}
	if err := uc.journal.Start(ctx, build); err != nil {
		return nil, fmt.Errorf("record build start: %w", err)
	}
	slog.Info("index_build_started", "build_id", build.ID, "collection", uc.collection, "reason", reason)

	buildErr := uc.build(ctx, build)

	finished := uc.now()
	build.FinishedAt = &finished
	build.Status = domain.BuildSucceeded
	if buildErr != nil {
		build.Status = domain.BuildFailed
		build.Error = buildErr.Error()
	}

	// The journal write must survive a cancelled build context.
	if err := uc.journal.Finish(context.WithoutCancel(ctx), build); err != nil {
		if buildErr != nil {
			return build, fmt.Errorf("%w; record build finish: %v", buildErr, err)
		}
		return build, fmt.Errorf("record build finish: %w", err)
	}

	if buildErr != nil {
		slog.Error("index_build_failed", "build_id", build.ID, "error", buildErr)
		return build, buildErr
	}
	slog.Info("index_build_succeeded",
		"build_id", build.ID,
		"documents", build.Documents,
		"chunks", build.Chunks,
		"skipped", build.Skipped,
	)
	return build, nil
}

func (uc *BuildIndexUseCase) build(ctx context.Context, build *domain.IndexBuild) error {
	docs, skipped, err := uc.source.Documents(ctx)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	build.Skipped = skipped

	chunks := uc.split(docs, build)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("no document produced any chunk"))
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}

	manifest := domain.IndexManifest{
		Collection: uc.collection,
		EmbedModel: uc.embedder.Model(),
		Chunks:     len(chunks),
		Documents:  build.Documents,
		BuiltAt:    uc.now(),
	}
	if err := uc.index.Replace(ctx, chunks, vectors, manifest); err != nil {
		return fmt.Errorf("replace chunk index: %w", err)
	}
	build.Chunks = len(chunks)
	return nil
}

func (uc *BuildIndexUseCase) split(docs []domain.Document, build *domain.IndexBuild) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(docs))
	for docIndex, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			build.Skipped++
			continue
		}
		parts := uc.chunker.Split(doc.Text)
		if len(parts) == 0 {
			build.Skipped++
			continue
		}
		build.Documents++
		for chunkIndex, text := range parts {
			chunks = append(chunks, domain.Chunk{
				ID:            uuid.NewString(),
				Origin:        doc.Origin,
				Page:          doc.Page,
				DocumentIndex: docIndex,
				ChunkIndex:    chunkIndex,
				Text:          text,
			})
		}
	}
	return chunks
}

// embed fails the whole build on any embedding error; a partial index is
// never written.
func (uc *BuildIndexUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := min(start+uc.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), len(texts)),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

type noopJournal struct{}

func (noopJournal) Start(context.Context, *domain.IndexBuild) error  { return nil }
func (noopJournal) Finish(context.Context, *domain.IndexBuild) error { return nil }
func (noopJournal) Latest(context.Context, string) (*domain.IndexBuild, error) {
	return nil, domain.ErrNotFound
}
