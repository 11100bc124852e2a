package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

const (
	dbDirName        = "db"
	manifestFileName = "manifest.json"
)

// Store keeps the Chunk Index in a chromem-go persistent DB under dir. The
// manifest file next to the DB is the build marker: it is removed before a
// rebuild and written after the last chunk. Readers in other processes reopen
// the DB when the marker changes.
type Store struct {
	dir        string
	collection string
	compress   bool

	mu         sync.RWMutex
	db         *chromem.DB
	loadedMark time.Time
}

func Open(dir, collection string, compress bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	s := &Store{dir: dir, collection: collection, compress: compress}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Replace(ctx context.Context, chunks []domain.Chunk, vectors [][]float32, manifest domain.IndexManifest) error {
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chromem replace", errors.New("no chunks"))
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.manifestPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index marker: %w", err)
	}
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", s.collection, err)
	}
	collection, err := s.db.CreateCollection(s.collection, map[string]string{"embed_model": manifest.EmbedModel}, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  chunkMetadata(chunk),
			Embedding: vectors[i],
		}
	}
	// Embeddings are precomputed, so a single goroutine is enough.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	if err := writeManifest(s.manifestPath(), manifest); err != nil {
		return err
	}
	info, err := os.Stat(s.manifestPath())
	if err != nil {
		return fmt.Errorf("stat index marker: %w", err)
	}
	s.loadedMark = info.ModTime()
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if _, err := s.refresh(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.collection, nil)
	if collection == nil {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "chromem search", fmt.Errorf("collection %s", s.collection))
	}
	// chromem requires nResults <= document count.
	limit = min(limit, collection.Count())
	if limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	results, err := collection.QueryEmbedding(ctx, queryVector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", s.collection, err)
	}

	out := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, domain.ScoredChunk{
			Chunk: chunkFromResult(r),
			Score: float64(r.Similarity),
		})
	}
	return out, nil
}

func (s *Store) Manifest(context.Context) (domain.IndexManifest, error) {
	return s.refresh()
}

// refresh reads the marker and reopens the DB when another process rebuilt
// the index since the last load.
func (s *Store) refresh() (domain.IndexManifest, error) {
	manifest, modTime, err := readManifest(s.manifestPath())
	if err != nil {
		return domain.IndexManifest{}, err
	}

	s.mu.RLock()
	current := s.loadedMark.Equal(modTime)
	s.mu.RUnlock()
	if current {
		return manifest, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loadedMark.Equal(modTime) {
		if err := s.reloadLocked(); err != nil {
			return domain.IndexManifest{}, err
		}
		s.loadedMark = modTime
		slog.Info("chunk_index_reloaded", "collection", s.collection, "chunks", manifest.Chunks)
	}
	return manifest, nil
}

func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}
	if info, err := os.Stat(s.manifestPath()); err == nil {
		s.loadedMark = info.ModTime()
	}
	return nil
}

func (s *Store) reloadLocked() error {
	db, err := chromem.NewPersistentDB(filepath.Join(s.dir, dbDirName), s.compress)
	if err != nil {
		return fmt.Errorf("open chromem db: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, manifestFileName)
}

func chunkMetadata(chunk domain.Chunk) map[string]string {
	return map[string]string{
		"origin":         chunk.Origin,
		"page":           strconv.Itoa(chunk.Page),
		"document_index": strconv.Itoa(chunk.DocumentIndex),
		"chunk_index":    strconv.Itoa(chunk.ChunkIndex),
	}
}

func chunkFromResult(r chromem.Result) domain.Chunk {
	atoi := func(key string) int {
		v, _ := strconv.Atoi(r.Metadata[key])
		return v
	}
	return domain.Chunk{
		ID:            r.ID,
		Origin:        r.Metadata["origin"],
		Page:          atoi("page"),
		DocumentIndex: atoi("document_index"),
		ChunkIndex:    atoi("chunk_index"),
		Text:          r.Content,
	}
}

func writeManifest(path string, manifest domain.IndexManifest) error {
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write index marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit index marker: %w", err)
	}
	return nil
}

func readManifest(path string) (domain.IndexManifest, time.Time, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.IndexManifest{}, time.Time{}, domain.WrapError(domain.ErrIndexNotFound, "read index marker", err)
	}
	if err != nil {
		return domain.IndexManifest{}, time.Time{}, fmt.Errorf("stat index marker: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.IndexManifest{}, time.Time{}, fmt.Errorf("read index marker: %w", err)
	}
	var manifest domain.IndexManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return domain.IndexManifest{}, time.Time{}, fmt.Errorf("decode index marker: %w", err)
	}
	return manifest, info.ModTime(), nil
}
