package ports

import (
	"context"
	"io"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

// AnalysisSubmitter is the inbound contract for multi-image analysis intake.
type AnalysisSubmitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Analysis, error)
}

// AnalysisReader is the owner-scoped read model for analysis history.
type AnalysisReader interface {
	GetByID(ctx context.Context, ownerID, id string) (*domain.Analysis, error)
	List(ctx context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error)
}

// RecommendationService generates advice and records opinion requests.
type RecommendationService interface {
	GenerateForAnalysis(ctx context.Context, analysisID string) (*domain.Recommendation, error)
	RequestAdvice(ctx context.Context, ownerID, analysisID string) (*domain.Recommendation, error)
	RequestOpinion(ctx context.Context, ownerID, analysisID, question string) (*domain.Recommendation, error)
	ListForAnalysis(ctx context.Context, analysisID string) ([]domain.Recommendation, error)
}

// ReviewService is the admin surface over stored recommendations.
type ReviewService interface {
	List(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error)
	Review(ctx context.Context, id string, status domain.RecommendationStatus, comment string) (*domain.Recommendation, error)
	Respond(ctx context.Context, id, response string) (*domain.Recommendation, error)
	SetOpinionStatus(ctx context.Context, id string, status domain.RecommendationStatus) (*domain.Recommendation, error)
	Delete(ctx context.Context, id string) error
}

// StatsService reports admin statistics.
type StatsService interface {
	Collect(ctx context.Context) (domain.RecommendationStats, error)
	Export(ctx context.Context, w io.Writer) error
}
