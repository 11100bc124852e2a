package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

const (
	DefaultTopK = 6

	// Extra candidates fetched beyond k so that equal scores at the cut are
	// resolved by document order instead of by index internals.
	retrieveTieSlack = 8
)

type RetrieveUseCase struct {
	embedder ports.Embedder
	index    ports.ChunkIndex
}

func NewRetrieveUseCase(embedder ports.Embedder, index ports.ChunkIndex) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns the top k chunks, highest score first and ties in
// original document order. It fails with domain.ErrIndexNotFound when the
// index has not been built or was built with another embedding model.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}
	if k <= 0 {
		k = DefaultTopK
	}

	manifest, err := uc.index.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("read index manifest: %w", err)
	}
	if err := manifest.CheckEmbedModel(uc.embedder.Model()); err != nil {
		return nil, err
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.index.Search(ctx, queryVector, k+retrieveTieSlack)
	if err != nil {
		return nil, fmt.Errorf("search chunk index: %w", err)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Before(chunks[j].Chunk)
	})
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}
