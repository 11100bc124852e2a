package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
	"github.com/kirillkom/zoning-feasibility/internal/observability/metrics"
)

const (
	maxJSONBodyBytes      = 1 << 20
	maxMultipartBodyBytes = 64 << 20
	metricsService        = "api"
)

// Services are the inbound ports served over HTTP. Nil services answer 501.
type Services struct {
	Zoning   ports.ZoningService
	Site     ports.SiteService
	Draw     ports.DrawVarianceService
	Index    ports.IndexAdmin
	Uploader ports.DocumentUploader
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
	}
}

// Handler assembles the API. Health and metrics bypass traffic control.
func (rt *Router) Handler() (http.Handler, error) {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/zoning/qa", rt.zoningQA)
	api.HandleFunc("POST /v1/zoning/snapshot", rt.zoningSnapshot)
	api.HandleFunc("POST /v1/zoning/envelope", rt.zoningEnvelope)
	api.HandleFunc("POST /v1/zoning/go-no-go", rt.zoningGoNoGo)
	api.HandleFunc("POST /v1/zoning/developer-analysis", rt.developerAnalysis)
	api.HandleFunc("POST /v1/zoning/use-analysis", rt.useAnalysis)
	api.HandleFunc("POST /v1/zoning/variance-analysis", rt.varianceAnalysis)
	api.HandleFunc("POST /v1/zoning/overlays", rt.overlays)
	api.HandleFunc("POST /v1/zoning/site", rt.site)
	api.HandleFunc("POST /v1/index/rebuild", rt.requestRebuild)
	api.HandleFunc("GET /v1/index/status", rt.indexStatus)
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("POST /v1/draw/variance", rt.drawVariance)

	var handler http.Handler = api
	if rt.cfg.APIOpenAPIValidation {
		doc, err := loadOpenAPI(context.Background())
		if err != nil {
			return nil, err
		}
		handler, err = openAPIValidationMiddleware(handler, doc)
		if err != nil {
			return nil, err
		}
	}
	handler = authMiddleware(handler, rt.cfg.APIKey)
	handler = timeoutMiddleware(handler, rt.cfg.APIRequestTimeout)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/", handler)

	var out http.Handler = accessLogMiddleware(root)
	out = requestIDMiddleware(out)
	if rt.metrics != nil {
		out = rt.metrics.Middleware(metricsService, out)
	}
	return out, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errEmptyBody)
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func (rt *Router) observeRAG(endpoint string, sources int, facts *domain.ExtractionResult, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(metricsService, endpoint, sources, time.Since(start))
	if facts != nil {
		rt.metrics.RecordExtraction(metricsService, endpoint, facts.IsStructured())
	}
}

func writeNotConfigured(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": fmt.Sprintf("%s is not configured", name)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
