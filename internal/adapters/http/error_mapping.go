package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

const indexMissingMessage = "chunk index is not built yet; request POST /v1/index/rebuild and retry once the build has finished"

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	switch {
	case domain.IsKind(err, domain.ErrIndexNotFound):
		message = indexMissingMessage
	case status == http.StatusInternalServerError:
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	if errors.Is(context.Cause(r.Context()), errRequestTimeout) {
		status = http.StatusGatewayTimeout
		message = errRequestTimeout.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}
