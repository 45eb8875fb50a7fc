package httpadapter

import (
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/content"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type recommendationView struct {
	ID          string                      `json:"id"`
	AnalysisID  string                      `json:"analysis_id"`
	GeneratedBy domain.GeneratedBy          `json:"generated_by"`
	Status      domain.RecommendationStatus `json:"status"`
	Content     string                      `json:"content"`
	Document    *content.Document           `json:"document,omitempty"`
	Opinion     *content.Opinion            `json:"opinion,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// newRecommendationView decodes stored content: opinion requests into the
// question/response pair, everything else into summary and sections.
func newRecommendationView(rec domain.Recommendation) recommendationView {
	view := recommendationView{
		ID:          rec.ID,
		AnalysisID:  rec.AnalysisID,
		GeneratedBy: rec.GeneratedBy,
		Status:      rec.Status,
		Content:     rec.Content,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if content.IsOpinionRequest(rec.Content) {
		opinion := content.DecodeOpinion(rec.Content)
		view.Opinion = &opinion
		return view
	}
	doc := content.Decode(rec.Content)
	view.Document = &doc
	return view
}

type analysisDetail struct {
	*domain.Analysis
	Recommendations []recommendationView `json:"recommendations"`
	Opinions        []recommendationView `json:"opinion_requests"`
}

func newAnalysisDetail(analysis *domain.Analysis, recs []domain.Recommendation) analysisDetail {
	detail := analysisDetail{
		Analysis:        analysis,
		Recommendations: []recommendationView{},
		Opinions:        []recommendationView{},
	}
	for _, rec := range recs {
		view := newRecommendationView(rec)
		if view.Opinion != nil {
			detail.Opinions = append(detail.Opinions, view)
			continue
		}
		detail.Recommendations = append(detail.Recommendations, view)
	}
	return detail
}
