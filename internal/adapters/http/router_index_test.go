package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

func multipartRequest(t *testing.T, path string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, name := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("LineItem,Amount\nFraming,100\n")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestRebuildPassesReason(t *testing.T) {
	admin := &indexAdminFake{}
	handler := newTestHandler(t, config.Config{APIOpenAPIValidation: true}, Services{Index: admin})

	res := postJSON(t, handler, "/v1/index/rebuild", map[string]any{"reason": "title 17 amended"})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(admin.reasons) != 1 || admin.reasons[0] != "title 17 amended" {
		t.Fatalf("unexpected reasons %v", admin.reasons)
	}
}

func TestRebuildQueueFailureIs503(t *testing.T) {
	admin := &indexAdminFake{err: domain.WrapError(domain.ErrTemporary, "publish rebuild", errors.New("nats down"))}
	handler := newTestHandler(t, config.Config{}, Services{Index: admin})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/index/rebuild", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestIndexStatus(t *testing.T) {
	admin := &indexAdminFake{status: &ports.IndexStatus{Built: true, Collection: "zoning", Manifest: &domain.IndexManifest{Chunks: 7}}}
	handler := newTestHandler(t, config.Config{}, Services{Index: admin})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/index/status", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var status ports.IndexStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Built || status.Manifest.Chunks != 7 {
		t.Fatalf("unexpected status %+v", status)
	}

	missing := newTestHandler(t, config.Config{}, Services{Index: &indexAdminFake{err: domain.WrapError(domain.ErrNotFound, "index status", errors.New("no build recorded"))}})
	res = httptest.NewRecorder()
	missing.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/index/status", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	uploader := &uploaderFake{}
	handler := newTestHandler(t, config.Config{APIOpenAPIValidation: true}, Services{Uploader: uploader})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/documents", map[string]string{"file": "title17.txt"}))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if uploader.filename != "title17.txt" || !strings.HasPrefix(uploader.body, "LineItem") {
		t.Fatalf("unexpected upload %q", uploader.filename)
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, Services{Uploader: &uploaderFake{}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/documents", map[string]string{"other": "a.txt"}))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDrawVarianceReadsBothFiles(t *testing.T) {
	draw := &drawFake{}
	handler := newTestHandler(t, config.Config{}, Services{Draw: draw})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/draw/variance", map[string]string{"budget": "budget.csv", "draw": "draw.xlsx"}))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if draw.budget != "budget.csv" || draw.draw != "draw.xlsx" {
		t.Fatalf("unexpected files %q %q", draw.budget, draw.draw)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["result"] != "No overruns detected." {
		t.Fatalf("unexpected body %v", body)
	}
}
