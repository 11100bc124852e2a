package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

type addressRequest struct {
	Address string `json:"address"`
}

func (rt *Router) zoningQA(w http.ResponseWriter, r *http.Request) {
	if rt.services.Zoning == nil {
		writeNotConfigured(w, "zoning service")
		return
	}
	var req ports.QARequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	answer, err := rt.services.Zoning.Answer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("qa", len(answer.Sources), nil, start)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) zoningSnapshot(w http.ResponseWriter, r *http.Request) {
	if rt.services.Zoning == nil {
		writeNotConfigured(w, "zoning service")
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Zoning.Snapshot(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("snapshot", len(report.Sources), &report.Facts, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) zoningEnvelope(w http.ResponseWriter, r *http.Request) {
	if rt.services.Zoning == nil {
		writeNotConfigured(w, "zoning service")
		return
	}
	var req ports.EnvelopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Zoning.Envelope(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("envelope", len(report.Sources), &report.Facts, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) zoningGoNoGo(w http.ResponseWriter, r *http.Request) {
	if rt.services.Zoning == nil {
		writeNotConfigured(w, "zoning service")
		return
	}
	var req ports.FeasibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Zoning.GoNoGo(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("go-no-go", len(report.Sources), &report.Facts, start)
	if rt.metrics != nil {
		rt.metrics.RecordFeasibility(metricsService, string(report.Rating))
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) developerAnalysis(w http.ResponseWriter, r *http.Request) {
	if rt.services.Site == nil {
		writeNotConfigured(w, "site service")
		return
	}
	var req ports.DeveloperAnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Site.DeveloperAnalysis(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("developer-analysis", len(report.Sources), &report.Facts, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) useAnalysis(w http.ResponseWriter, r *http.Request) {
	if rt.services.Site == nil {
		writeNotConfigured(w, "site service")
		return
	}
	var req ports.UseAnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Site.UseAnalysis(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("use-analysis", len(report.Sources), nil, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) varianceAnalysis(w http.ResponseWriter, r *http.Request) {
	if rt.services.Site == nil {
		writeNotConfigured(w, "site service")
		return
	}
	var req ports.VarianceAnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Site.VarianceAnalysis(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("variance-analysis", len(report.Sources), nil, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) overlays(w http.ResponseWriter, r *http.Request) {
	if rt.services.Site == nil {
		writeNotConfigured(w, "site service")
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := rt.services.Site.Overlays(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.observeRAG("overlays", len(report.Sources), nil, start)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) site(w http.ResponseWriter, r *http.Request) {
	if rt.services.Site == nil {
		writeNotConfigured(w, "site service")
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := rt.services.Site.Site(r.Context(), req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
