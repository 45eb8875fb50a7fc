package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	if _, ok := domain.AsAggregationError(err); ok {
		return http.StatusUnprocessableEntity
	}
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if aggErr, ok := domain.AsAggregationError(err); ok {
		writeJSON(w, status, map[string]any{
			"error":  aggregationMessage(aggErr.Kind),
			"kind":   aggErr.Kind,
			"images": aggErr.Images,
		})
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func aggregationMessage(kind domain.AggregationFailureKind) string {
	if kind == domain.AllImagesErrored {
		return "none of the images could be processed"
	}
	return domain.NotAPlantUserNotice
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
