package bootstrap

import (
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/config"
)

func TestResilienceConfigMapsGenerateAttempts(t *testing.T) {
	cfg := config.Config{
		ResilienceRetryMaxAttempts:      4,
		ResilienceGenerateMaxAttempts:   1,
		ResilienceRetryInitialBackoff:   50 * time.Millisecond,
		ResilienceBreakerMinRequests:    0,
		ResilienceBreakerHalfOpenMaxReq: 3,
	}

	got := resilienceConfig(cfg)
	if got.RetryMaxAttempts != 4 || got.OperationAttempts["ollama.generate"] != 1 {
		t.Fatalf("unexpected attempts %+v", got)
	}
	if got.BreakerMinRequests != 10 {
		t.Fatalf("expected default breaker min requests, got %d", got.BreakerMinRequests)
	}
	if got.BreakerHalfOpenMaxCalls != 3 {
		t.Fatalf("expected half-open calls 3, got %d", got.BreakerHalfOpenMaxCalls)
	}
}

func TestOpenIndexChromemAndUnknownBackend(t *testing.T) {
	cfg := config.Config{IndexBackend: config.BackendChromem, IndexPath: t.TempDir(), IndexCollection: "zoning"}
	if _, err := openIndex(cfg, nil); err != nil {
		t.Fatalf("openIndex(chromem) error = %v", err)
	}

	cfg.IndexBackend = "faiss"
	if _, err := openIndex(cfg, nil); !errors.Is(err, config.ErrUnknownBackend) {
		t.Fatalf("expected unknown backend, got %v", err)
	}
}

func TestNewLocalWiresWithoutQueue(t *testing.T) {
	cfg := config.Config{
		IndexBackend:    config.BackendChromem,
		IndexPath:       t.TempDir(),
		IndexCollection: "zoning",
		DocumentsPath:   t.TempDir(),
		ChunkSize:       1500,
		ChunkOverlap:    200,
		RAGTopK:         6,
	}

	app, err := NewLocal(t.Context(), cfg)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	defer app.Close()

	if app.Queue != nil || app.IndexAdmin != nil || app.Uploader != nil {
		t.Fatalf("expected no queue-backed services in a local app")
	}
	if app.Builder == nil || app.Zoning == nil || app.Site == nil || app.Draw == nil {
		t.Fatalf("expected core use cases wired")
	}
}
