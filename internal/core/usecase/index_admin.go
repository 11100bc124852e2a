package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

type IndexAdminUseCase struct {
	index      ports.ChunkIndex
	journal    ports.BuildJournal
	queue      ports.RebuildQueue
	collection string
}

func NewIndexAdminUseCase(
	index ports.ChunkIndex,
	journal ports.BuildJournal,
	queue ports.RebuildQueue,
	collection string,
) *IndexAdminUseCase {
	if journal == nil {
		journal = noopJournal{}
	}
	return &IndexAdminUseCase{
		index:      index,
		journal:    journal,
		queue:      queue,
		collection: collection,
	}
}

func (uc *IndexAdminUseCase) RequestRebuild(ctx context.Context, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "manual"
	}
	if err := uc.queue.PublishRebuildRequested(ctx, reason); err != nil {
		return fmt.Errorf("publish rebuild request: %w", err)
	}
	return nil
}

// Status reports the manifest of the built index and the latest journal
// entry. It fails with domain.ErrNotFound when neither exists.
func (uc *IndexAdminUseCase) Status(ctx context.Context) (*ports.IndexStatus, error) {
	status := &ports.IndexStatus{Collection: uc.collection}

	manifest, err := uc.index.Manifest(ctx)
	switch {
	case err == nil:
		status.Built = true
		status.Manifest = &manifest
	case domain.IsKind(err, domain.ErrIndexNotFound):
	default:
		return nil, fmt.Errorf("read index manifest: %w", err)
	}

	build, err := uc.journal.Latest(ctx, uc.collection)
	switch {
	case err == nil:
		status.LastBuild = build
	case domain.IsKind(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("read latest build: %w", err)
	}

	if !status.Built && status.LastBuild == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "index status", errors.New("no index build recorded"))
	}
	return status, nil
}

var uploadExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// UploadDocumentUseCase stores a source document and schedules a rebuild.
type UploadDocumentUseCase struct {
	storage ports.ObjectStorage
	queue   ports.RebuildQueue
}

func NewUploadDocumentUseCase(storage ports.ObjectStorage, queue ports.RebuildQueue) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		storage: storage,
		queue:   queue,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	key := sanitizeFilename(filename)
	if !uploadExtensions[strings.ToLower(filepath.Ext(key))] {
		return "", domain.WrapError(
			domain.ErrInvalidInput,
			"upload document",
			fmt.Errorf("unsupported file type %q", filepath.Ext(key)),
		)
	}

	if err := uc.storage.Save(ctx, key, body); err != nil {
		return "", fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.queue.PublishRebuildRequested(ctx, "document uploaded: "+key); err != nil {
		return "", fmt.Errorf("publish rebuild request: %w", err)
	}
	return key, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.txt"
	}
	return base
}
