package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/config"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
	"github.com/kirillkom/crop-disease-analyzer/internal/observability/metrics"
)

const (
	ownerHeader     = "X-User-Id"
	imagesFormField = "images"

	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20

	backpressureWait = 50 * time.Millisecond
)

type Router struct {
	submitter ports.AnalysisSubmitter
	analyses  ports.AnalysisReader
	recs      ports.RecommendationService
	review    ports.ReviewService
	stats     ports.StatsService
	metrics   *metrics.HTTPServerMetrics

	adminAPIKey    string
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	maxUploadBytes int64
}

func NewRouter(
	cfg config.Config,
	submitter ports.AnalysisSubmitter,
	analyses ports.AnalysisReader,
	recs ports.RecommendationService,
	review ports.ReviewService,
	stats ports.StatsService,
) *Router {
	maxImages := max(cfg.MaxImages, 1)
	maxImageBytes := int64(max(cfg.MaxImageSizeMB, 1)) << 20
	return &Router{
		submitter:      submitter,
		analyses:       analyses,
		recs:           recs,
		review:         review,
		stats:          stats,
		adminAPIKey:    strings.TrimSpace(cfg.AdminAPIKey),
		rateLimitRPS:   cfg.RateLimitRPS,
		rateLimitBurst: cfg.RateLimitBurst,
		maxInFlight:    cfg.MaxInFlightRequests,
		maxUploadBytes: int64(maxImages)*maxImageBytes + multipartOverhead,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/analyses", rt.submitAnalysis)
	mux.HandleFunc("GET /v1/analyses", rt.listAnalyses)
	mux.HandleFunc("GET /v1/analyses/{id}", rt.getAnalysis)
	mux.HandleFunc("POST /v1/analyses/{id}/recommendations", rt.requestRecommendation)
	mux.HandleFunc("POST /v1/analyses/{id}/opinions", rt.requestOpinion)

	admin := func(h http.HandlerFunc) http.Handler { return rt.adminAuthMiddleware(h) }
	mux.Handle("GET /v1/admin/recommendations", admin(rt.listRecommendations))
	mux.Handle("POST /v1/admin/recommendations/{id}/review", admin(rt.reviewRecommendation))
	mux.Handle("DELETE /v1/admin/recommendations/{id}", admin(rt.deleteRecommendation))
	mux.Handle("POST /v1/admin/opinions/{id}/respond", admin(rt.respondOpinion))
	mux.Handle("PATCH /v1/admin/opinions/{id}", admin(rt.patchOpinion))
	mux.Handle("GET /v1/admin/stats", admin(rt.getStats))
	mux.Handle("GET /v1/admin/stats.xlsx", admin(rt.exportStats))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with field 'images' is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[imagesFormField]
	images, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(len(images))
	}

	analysis, err := rt.submitter.Submit(r.Context(), domain.SubmitRequest{
		OwnerID:      ownerID,
		Images:       images,
		CropOverride: strings.TrimSpace(r.FormValue("crop_type")),
		Location:     strings.TrimSpace(r.FormValue("location")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, analysis)
}

func openUploads(headers []*multipart.FileHeader) ([]domain.UploadedImage, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	images := make([]domain.UploadedImage, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		images = append(images, domain.UploadedImage{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return images, closeAll, nil
}

func (rt *Router) listAnalyses(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := domain.AnalysisFilter{
		OwnerID:  ownerID,
		CropType: strings.TrimSpace(query.Get("crop_type")),
		Search:   strings.TrimSpace(query.Get("search")),
	}
	var err error
	if filter.From, err = parseTimeParam(query.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if filter.Limit, filter.Offset, err = parsePage(query.Get("limit"), query.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := rt.analyses.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	analysis, err := rt.analyses.GetByID(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	recs, err := rt.recs.ListForAnalysis(r.Context(), analysis.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisDetail(analysis, recs))
}

func (rt *Router) requestRecommendation(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	rec, err := rt.recs.RequestAdvice(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecommendationView(*rec))
}

func (rt *Router) requestOpinion(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := rt.recs.RequestOpinion(r.Context(), ownerID, r.PathValue("id"), req.Question)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecommendationView(*rec))
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerHeader))
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, ownerHeader+" header is required")
		return "", false
	}
	return ownerID, true
}

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 timestamp or YYYY-MM-DD date")
	}
	return &t, nil
}

func parsePage(limitRaw, offsetRaw string) (int, int, error) {
	var limit, offset int
	var err error
	if strings.TrimSpace(limitRaw) != "" {
		if limit, err = strconv.Atoi(strings.TrimSpace(limitRaw)); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("limit must be a non-negative integer")
		}
	}
	if strings.TrimSpace(offsetRaw) != "" {
		if offset, err = strconv.Atoi(strings.TrimSpace(offsetRaw)); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
