package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/observability/metrics"
)

func TestZoningQAReturnsAnswerWithCitations(t *testing.T) {
	zoning := &zoningFake{}
	handler := newTestHandler(t, config.Config{}, Services{Zoning: zoning})

	res := postJSON(t, handler, "/v1/zoning/qa", map[string]any{"address": "100 Broadway", "question": "parking?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if zoning.lastQA.Address != "100 Broadway" || zoning.lastQA.Question != "parking?" {
		t.Fatalf("unexpected request %+v", zoning.lastQA)
	}

	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "Four spaces." || len(answer.Sources) != 1 || *answer.Sources[0].Page != 12 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestZoningEnvelopeDecodesLotDimensions(t *testing.T) {
	zoning := &zoningFake{}
	handler := newTestHandler(t, config.Config{}, Services{Zoning: zoning})

	res := postJSON(t, handler, "/v1/zoning/envelope", map[string]any{"address": "x", "lot_width_ft": 50.5, "lot_depth_ft": 120})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if zoning.lastEnv.LotWidthFt != 50.5 || zoning.lastEnv.LotDepthFt != 120 {
		t.Fatalf("unexpected envelope request %+v", zoning.lastEnv)
	}
}

func TestZoningGoNoGoRecordsRating(t *testing.T) {
	zoning := &zoningFake{}
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	handler, err := NewRouter(config.Config{}, Services{Zoning: zoning}, httpMetrics).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	res := postJSON(t, handler, "/v1/zoning/go-no-go", map[string]any{"address": "x", "proposed_use": "restaurant", "lot_width_ft": 40})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if zoning.lastGoNoGo.LotWidthFt == nil || *zoning.lastGoNoGo.LotWidthFt != 40 || zoning.lastGoNoGo.LotDepthFt != nil {
		t.Fatalf("unexpected optional lot dimensions %+v", zoning.lastGoNoGo)
	}

	scrape := httptest.NewRecorder()
	handler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(scrape.Body)
	if !strings.Contains(string(body), `zoning_feasibility_ratings_total{rating="Caution",service="api"} 1`) {
		t.Fatalf("expected rating metric, got:\n%s", body)
	}
}

func TestOpenAPIValidationRejectsMissingField(t *testing.T) {
	zoning := &zoningFake{}
	handler := newTestHandler(t, config.Config{APIOpenAPIValidation: true}, Services{Zoning: zoning})

	res := postJSON(t, handler, "/v1/zoning/qa", map[string]any{"address": "100 Broadway"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if zoning.lastQA.Address != "" {
		t.Fatalf("handler must not run for an invalid request")
	}

	res = postJSON(t, handler, "/v1/zoning/qa", map[string]any{"address": "100 Broadway", "question": "height?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected valid request to pass, got %d: %s", res.Code, res.Body.String())
	}
	if zoning.lastQA.Question != "height?" {
		t.Fatalf("expected body to survive validation, got %+v", zoning.lastQA)
	}
}

func TestOpenAPIValidationLetsMuxAnswerUnknownRoutes(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIOpenAPIValidation: true}, Services{Zoning: &zoningFake{}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/zoning/unknown", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestEmbeddedOpenAPIDocumentIsValid(t *testing.T) {
	doc, err := loadOpenAPI(t.Context())
	if err != nil {
		t.Fatalf("loadOpenAPI() error = %v", err)
	}
	if doc.Paths.Find("/v1/zoning/go-no-go") == nil {
		t.Fatalf("expected go-no-go path in document")
	}
}
