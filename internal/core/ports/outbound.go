package ports

import (
	"context"
	"io"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

// AnalysisRepository persists analyses together with their per-image results.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	GetByID(ctx context.Context, id string) (*domain.Analysis, error)
	List(ctx context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error)
}

// RecommendationRepository stores recommendation content. Content only grows
// through AppendContent; Delete is the only way to shrink it.
type RecommendationRepository interface {
	Create(ctx context.Context, rec *domain.Recommendation) error
	GetByID(ctx context.Context, id string) (*domain.Recommendation, error)
	ListByAnalysis(ctx context.Context, analysisID string) ([]domain.Recommendation, error)
	List(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error)
	HasGenerated(ctx context.Context, analysisID string, by domain.GeneratedBy) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.RecommendationStatus) error
	AppendContent(ctx context.Context, id, suffix string, status domain.RecommendationStatus) error
	Delete(ctx context.Context, id string) error
}

// StatsRepository aggregates admin statistics in the store.
type StatsRepository interface {
	CollectStats(ctx context.Context, topN int) (domain.RecommendationStats, error)
}

// ObjectStorage stores uploaded images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// EventQueue publishes/consumes analysis lifecycle events.
type EventQueue interface {
	PublishAnalysisCompleted(ctx context.Context, analysisID string) error
	SubscribeAnalysisCompleted(ctx context.Context, handler func(context.Context, string) error) error
}

// ImagePreprocessor turns raw image bytes into a model input tensor.
type ImagePreprocessor interface {
	Preprocess(ctx context.Context, data []byte) (domain.ImageTensor, error)
}

// ImageClassifier maps a tensor to a probability per label.
type ImageClassifier interface {
	Classify(ctx context.Context, tensor domain.ImageTensor) ([]float64, error)
	Labels() []string
	Name() string
}

// AdviceGenerator writes treatment advice for a diagnosis.
type AdviceGenerator interface {
	GenerateAdvice(ctx context.Context, req domain.AdviceRequest) (domain.Advice, error)
}

// StatsExporter renders statistics into a downloadable document.
type StatsExporter interface {
	WriteStats(w io.Writer, stats domain.RecommendationStats) error
}
