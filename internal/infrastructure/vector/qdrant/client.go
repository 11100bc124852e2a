package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/resilience"
)

const (
	upsertBatchSize = 256
	kindChunk       = "chunk"
	kindManifest    = "manifest"
)

// manifestPointID is a fixed point that carries the index manifest. It is
// written after every chunk, so its presence marks the collection as built.
var manifestPointID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("zoning-feasibility/manifest")).String()

// Client stores the Chunk Index in one Qdrant collection over the REST API.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string) *Client {
	return NewWithExecutor(baseURL, collection, nil)
}

func NewWithExecutor(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Replace drops the collection, recreates it for the vector size of the
// build and upserts every chunk before the manifest point.
func (c *Client) Replace(ctx context.Context, chunks []domain.Chunk, vectors [][]float32, manifest domain.IndexManifest) error {
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant replace", errors.New("no chunks"))
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	if err := c.dropCollection(ctx); err != nil {
		return err
	}
	if err := c.createCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, chunkPoint(chunks[i], vectors[i]))
		}
		if err := c.upsert(ctx, points); err != nil {
			return err
		}
	}

	manifestPayload, err := manifestToPayload(manifest)
	if err != nil {
		return err
	}
	return c.upsert(ctx, []point{{ID: manifestPointID, Vector: vectors[0], Payload: manifestPayload}})
}

// Search fails with domain.ErrIndexNotFound until the manifest point exists,
// so a collection left half written by a running or failed build is never
// queried.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if _, err := c.Manifest(ctx); err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "kind", "match": map[string]any{"value": kindChunk}},
			},
		},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.call(ctx, "search", http.MethodPost, path, reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:            getStringPayload(r.Payload, "chunk_id"),
				Origin:        getStringPayload(r.Payload, "origin"),
				Page:          getIntPayload(r.Payload, "page"),
				DocumentIndex: getIntPayload(r.Payload, "document_index"),
				ChunkIndex:    getIntPayload(r.Payload, "chunk_index"),
				Text:          getStringPayload(r.Payload, "text"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (c *Client) Manifest(ctx context.Context) (domain.IndexManifest, error) {
	var resp struct {
		Result struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/%s", c.collection, manifestPointID)
	if err := c.call(ctx, "manifest", http.MethodGet, path, nil, &resp); err != nil {
		return domain.IndexManifest{}, err
	}

	raw, err := json.Marshal(resp.Result.Payload)
	if err != nil {
		return domain.IndexManifest{}, fmt.Errorf("marshal manifest payload: %w", err)
	}
	var manifest domain.IndexManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return domain.IndexManifest{}, fmt.Errorf("decode manifest payload: %w", err)
	}
	return manifest, nil
}

func (c *Client) dropCollection(ctx context.Context) error {
	err := c.call(ctx, "drop collection", http.MethodDelete, "/collections/"+c.collection, nil, nil)
	if err != nil && !domain.IsKind(err, domain.ErrIndexNotFound) {
		return err
	}
	return nil
}

func (c *Client) createCollection(ctx context.Context, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	return c.call(ctx, "create collection", http.MethodPut, "/collections/"+c.collection, reqBody, nil)
}

func (c *Client) upsert(ctx context.Context, points []point) error {
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.call(ctx, "upsert", http.MethodPut, path, map[string]any{"points": points}, nil)
}

func (c *Client) call(ctx context.Context, operation, method, path string, payload any, out any) error {
	fn := func(callCtx context.Context) error {
		return c.doJSON(callCtx, operation, method, path, payload, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), fn, resilience.ClassifyHTTP)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		return nil
	}

	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return domain.WrapError(domain.ErrIndexNotFound, "qdrant "+operation, err)
	}
	return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTP)
}

func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func chunkPoint(chunk domain.Chunk, vector []float32) point {
	id := chunk.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	return point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"kind":           kindChunk,
			"chunk_id":       chunk.ID,
			"origin":         chunk.Origin,
			"page":           chunk.Page,
			"document_index": chunk.DocumentIndex,
			"chunk_index":    chunk.ChunkIndex,
			"text":           chunk.Text,
		},
	}
}

func manifestToPayload(manifest domain.IndexManifest) (map[string]any, error) {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("manifest payload: %w", err)
	}
	payload["kind"] = kindManifest
	return payload, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
