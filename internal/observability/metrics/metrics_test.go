package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestHTTPMetricsRecordPipelineOutcomes(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRAGObservation("api", "envelope", 3, 2*time.Second)
	m.RecordRAGObservation("api", "qa", 0, time.Second)
	m.RecordExtraction("api", "envelope", true)
	m.RecordExtraction("api", "go-no-go", false)
	m.RecordFeasibility("api", "No-Go")

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`zoning_rag_retrieval_hit_total{endpoint="envelope",service="api"} 1`,
		`zoning_rag_no_context_total{endpoint="qa",service="api"} 1`,
		`zoning_extraction_results_total{endpoint="envelope",outcome="structured",service="api"} 1`,
		`zoning_extraction_results_total{endpoint="go-no-go",outcome="unstructured",service="api"} 1`,
		`zoning_feasibility_ratings_total{rating="No-Go",service="api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestHTTPMiddlewareCountsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/index/rebuild", nil))

	body := scrape(t, m.Handler())
	want := `zoning_http_requests_total{method="POST",path="/v1/index/rebuild",service="api",status="202"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("metrics missing %q", want)
	}
}

func TestWorkerMetricsRecordBuilds(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartBuild()
	m.FinishBuild("worker", 3*time.Second, &domain.IndexBuild{Collection: "zoning", Chunks: 120, Skipped: 2}, nil)
	m.StartBuild()
	m.FinishBuild("worker", time.Second, nil, errors.New("embed failed"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`zoning_index_builds_total{service="worker",status="success"} 1`,
		`zoning_index_builds_total{service="worker",status="error"} 1`,
		`zoning_index_chunks{collection="zoning",service="worker"} 120`,
		`zoning_index_skipped_documents{collection="zoning",service="worker"} 2`,
		`zoning_index_build_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestDependencyMetricsTrackRetriesAndBreaker(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	deps := m.Dependencies()
	deps.ObserveRetry("arcgis.geocode")
	deps.ObserveRetry("arcgis.geocode")
	deps.ObserveBreakerState("arcgis", "open")

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`zoning_dependency_retries_total{operation="arcgis.geocode",service="api"} 2`,
		`zoning_dependency_breaker_state{dependency="arcgis",service="api",state="open"} 1`,
		`zoning_dependency_breaker_state{dependency="arcgis",service="api",state="closed"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
