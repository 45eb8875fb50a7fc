package httpadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/config"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/content"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

var fixedTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type submitterFake struct {
	err  error
	last domain.SubmitRequest
	body []string
}

func (f *submitterFake) Submit(_ context.Context, req domain.SubmitRequest) (*domain.Analysis, error) {
	f.last = req
	for _, img := range req.Images {
		data, _ := io.ReadAll(img.Body)
		f.body = append(f.body, string(data))
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{
		ID:                "analysis-1",
		OwnerID:           req.OwnerID,
		CropType:          "Tomato",
		PrimaryDisease:    "Late Blight",
		AverageConfidence: 0.72,
		AverageSeverity:   domain.SeverityMedium,
		Status:            domain.AnalysisStatusCompleted,
		CreatedAt:         fixedTime,
	}, nil
}

type analysisReaderFake struct {
	items      map[string]domain.Analysis
	lastFilter domain.AnalysisFilter
	listErr    error
}

func (f *analysisReaderFake) GetByID(_ context.Context, ownerID, id string) (*domain.Analysis, error) {
	a, ok := f.items[id]
	if !ok || a.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch analysis by id", fmt.Errorf("analysis %s", id))
	}
	return &a, nil
}

func (f *analysisReaderFake) List(_ context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Analysis, 0, len(f.items))
	for _, a := range f.items {
		if a.OwnerID == filter.OwnerID {
			out = append(out, a)
		}
	}
	return out, nil
}

type recommendationServiceFake struct {
	recs         []domain.Recommendation
	err          error
	lastQuestion string
}

func (f *recommendationServiceFake) GenerateForAnalysis(context.Context, string) (*domain.Recommendation, error) {
	return nil, nil
}

func (f *recommendationServiceFake) RequestAdvice(_ context.Context, ownerID, analysisID string) (*domain.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec := domain.Recommendation{
		ID:          "rec-ai",
		AnalysisID:  analysisID,
		GeneratedBy: domain.GeneratedByAI,
		Content:     content.Encode("Remove infected leaves.", map[string]any{"severity_level": "medium"}),
		Status:      domain.RecommendationPending,
		CreatedAt:   fixedTime,
		UpdatedAt:   fixedTime,
	}
	return &rec, nil
}

func (f *recommendationServiceFake) RequestOpinion(_ context.Context, ownerID, analysisID, question string) (*domain.Recommendation, error) {
	f.lastQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	rec := domain.Recommendation{
		ID:          "rec-op",
		AnalysisID:  analysisID,
		GeneratedBy: domain.GeneratedByHuman,
		Content:     content.EncodeOpinionRequest(question),
		Status:      domain.RecommendationPending,
	}
	return &rec, nil
}

func (f *recommendationServiceFake) ListForAnalysis(context.Context, string) ([]domain.Recommendation, error) {
	return f.recs, f.err
}

type reviewServiceFake struct {
	err        error
	lastFilter domain.RecommendationFilter
	lastStatus domain.RecommendationStatus
	lastText   string
	deleted    []string
}

func (f *reviewServiceFake) List(_ context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Recommendation{{ID: "rec-1", AnalysisID: "analysis-1", GeneratedBy: domain.GeneratedByAI, Content: "advice", Status: domain.RecommendationPending}}, nil
}

func (f *reviewServiceFake) Review(_ context.Context, id string, status domain.RecommendationStatus, comment string) (*domain.Recommendation, error) {
	f.lastStatus, f.lastText = status, comment
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{
		ID:      id,
		Status:  status,
		Content: content.AppendAnnotation("advice", content.AdminCommentLabel, comment),
	}, nil
}

func (f *reviewServiceFake) Respond(_ context.Context, id, response string) (*domain.Recommendation, error) {
	f.lastText = response
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{
		ID:      id,
		Status:  domain.RecommendationResponded,
		Content: content.AppendAnnotation(content.EncodeOpinionRequest("q"), content.ExpertResponseLabel, response),
	}, nil
}

func (f *reviewServiceFake) SetOpinionStatus(_ context.Context, id string, status domain.RecommendationStatus) (*domain.Recommendation, error) {
	f.lastStatus = status
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{ID: id, Status: status, Content: content.EncodeOpinionRequest("q")}, nil
}

func (f *reviewServiceFake) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type statsServiceFake struct {
	err error
}

func (f statsServiceFake) Collect(context.Context) (domain.RecommendationStats, error) {
	if f.err != nil {
		return domain.RecommendationStats{}, f.err
	}
	return domain.RecommendationStats{TotalAnalyses: 4, TotalRecommendations: 3}, nil
}

func (f statsServiceFake) Export(_ context.Context, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("PK-xlsx"))
	return err
}

type testDeps struct {
	submitter *submitterFake
	analyses  *analysisReaderFake
	recs      *recommendationServiceFake
	review    *reviewServiceFake
	stats     statsServiceFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		submitter: &submitterFake{},
		analyses: &analysisReaderFake{items: map[string]domain.Analysis{
			"analysis-1": {ID: "analysis-1", OwnerID: "farmer-1", CropType: "Tomato", PrimaryDisease: "Late Blight", CreatedAt: fixedTime},
		}},
		recs:   &recommendationServiceFake{},
		review: &reviewServiceFake{},
	}
}

func (d *testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, d.submitter, d.analyses, d.recs, d.review, d.stats).Handler()
}
