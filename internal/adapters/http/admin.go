package httpadapter

import (
	"bytes"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/export/xlsx"
)

const statsFilename = "recommendation_stats.xlsx"

// adminAuthMiddleware requires the bearer key when one is configured.
func (rt *Router) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.adminAPIKey != "" && !isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.adminAPIKey) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}

func (rt *Router) listRecommendations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := rt.review.List(r.Context(), domain.RecommendationFilter{
		Status:      domain.RecommendationStatus(strings.TrimSpace(query.Get("status"))),
		GeneratedBy: domain.GeneratedBy(strings.TrimSpace(query.Get("generated_by"))),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]recommendationView, 0, len(items))
	for _, rec := range items {
		views = append(views, newRecommendationView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views, "count": len(views)})
}

func (rt *Router) reviewRecommendation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status       string `json:"status"`
		AdminComment string `json:"admin_comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := rt.review.Review(r.Context(), r.PathValue("id"), domain.RecommendationStatus(strings.TrimSpace(req.Status)), req.AdminComment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationView(*rec))
}

func (rt *Router) deleteRecommendation(w http.ResponseWriter, r *http.Request) {
	if err := rt.review.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) respondOpinion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpertResponse string `json:"expert_response"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := rt.review.Respond(r.Context(), r.PathValue("id"), req.ExpertResponse)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationView(*rec))
}

func (rt *Router) patchOpinion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := rt.review.SetOpinionStatus(r.Context(), r.PathValue("id"), domain.RecommendationStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationView(*rec))
}

func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.stats.Collect(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportStats(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failed export still gets a JSON error instead of a torn file.
	var buf bytes.Buffer
	if err := rt.stats.Export(r.Context(), &buf); err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+statsFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
