package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

func (rt *Router) requestRebuild(w http.ResponseWriter, r *http.Request) {
	if rt.services.Index == nil {
		writeNotConfigured(w, "index admin")
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeError(w, r, err)
			return
		}
	}

	if err := rt.services.Index.RequestRebuild(r.Context(), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuild requested"})
}

func (rt *Router) indexStatus(w http.ResponseWriter, r *http.Request) {
	if rt.services.Index == nil {
		writeNotConfigured(w, "index admin")
		return
	}
	status, err := rt.services.Index.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Uploader == nil {
		writeNotConfigured(w, "document upload")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBodyBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	key, err := rt.services.Uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"key": key, "status": "rebuild requested"})
}

func (rt *Router) drawVariance(w http.ResponseWriter, r *http.Request) {
	if rt.services.Draw == nil {
		writeNotConfigured(w, "draw variance")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBodyBytes)

	files := make(map[string]ports.LedgerFile, 2)
	for _, field := range []string{"budget", "draw"} {
		file, header, err := r.FormFile(field)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("multipart field '%s' is required", field)})
			return
		}
		defer file.Close()
		files[field] = ports.LedgerFile{Filename: header.Filename, Body: file}
	}

	result, err := rt.services.Draw.Compare(r.Context(), files["budget"], files["draw"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
