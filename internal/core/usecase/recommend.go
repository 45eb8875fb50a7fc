package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/content"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
)

const (
	AdviceSourcePrimary  = "primary"
	AdviceSourceFallback = "fallback"

	defaultOpinionQuestion = "Please provide expert advice for this crop analysis."
	defaultAdviceSummary   = "AI recommendation generated"
)

// AdviceObserver receives which generator produced each advice.
type AdviceObserver interface {
	ObserveAdvice(source string, duration time.Duration)
}

type RecommendUseCase struct {
	analyses ports.AnalysisRepository
	recs     ports.RecommendationRepository
	primary  ports.AdviceGenerator
	fallback ports.AdviceGenerator
	observer AdviceObserver
	now      func() time.Time
}

func NewRecommendUseCase(
	analyses ports.AnalysisRepository,
	recs ports.RecommendationRepository,
	primary ports.AdviceGenerator,
	fallback ports.AdviceGenerator,
	observer AdviceObserver,
) *RecommendUseCase {
	return &RecommendUseCase{
		analyses: analyses,
		recs:     recs,
		primary:  primary,
		fallback: fallback,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateForAnalysis creates the AI recommendation for a freshly completed
// analysis from its consensus diagnosis. Redelivered events are no-ops.
func (uc *RecommendUseCase) GenerateForAnalysis(ctx context.Context, analysisID string) (*domain.Recommendation, error) {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis by id: %w", err)
	}

	exists, err := uc.recs.HasGenerated(ctx, analysisID, domain.GeneratedByAI)
	if err != nil {
		return nil, fmt.Errorf("check existing recommendation: %w", err)
	}
	if exists {
		return nil, nil
	}

	return uc.generate(ctx, analysis, domain.AdviceRequest{
		CropType:   analysis.CropType,
		Disease:    analysis.PrimaryDisease,
		Severity:   analysis.AverageSeverity,
		Confidence: analysis.AverageConfidence,
		Location:   analysis.Location,
	})
}

// RequestAdvice generates an additional AI recommendation on demand, focused on
// the most confident valid image of the analysis.
func (uc *RecommendUseCase) RequestAdvice(ctx context.Context, ownerID, analysisID string) (*domain.Recommendation, error) {
	analysis, err := uc.ownedAnalysis(ctx, ownerID, analysisID)
	if err != nil {
		return nil, err
	}

	req := domain.AdviceRequest{
		CropType:   analysis.CropType,
		Disease:    analysis.PrimaryDisease,
		Severity:   analysis.AverageSeverity,
		Confidence: analysis.AverageConfidence,
		Location:   analysis.Location,
	}
	if best, ok := mostConfidentValid(analysis.Results); ok {
		req.Disease = best.Disease
		req.Severity = best.Severity
	}
	return uc.generate(ctx, analysis, req)
}

func (uc *RecommendUseCase) RequestOpinion(ctx context.Context, ownerID, analysisID, question string) (*domain.Recommendation, error) {
	analysis, err := uc.ownedAnalysis(ctx, ownerID, analysisID)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		question = defaultOpinionQuestion
	}
	return uc.store(ctx, analysis.ID, domain.GeneratedByHuman, content.EncodeOpinionRequest(question))
}

func (uc *RecommendUseCase) ListForAnalysis(ctx context.Context, analysisID string) ([]domain.Recommendation, error) {
	items, err := uc.recs.ListByAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return items, nil
}

func (uc *RecommendUseCase) generate(ctx context.Context, analysis *domain.Analysis, req domain.AdviceRequest) (*domain.Recommendation, error) {
	advice, err := uc.advise(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := renderAdvice(advice)
	if err != nil {
		return nil, fmt.Errorf("render advice: %w", err)
	}
	return uc.store(ctx, analysis.ID, domain.GeneratedByAI, body)
}

// advise never surfaces a primary generator failure; the fallback generator
// answers instead.
func (uc *RecommendUseCase) advise(ctx context.Context, req domain.AdviceRequest) (domain.Advice, error) {
	started := time.Now()
	if uc.primary != nil {
		advice, err := uc.primary.GenerateAdvice(ctx, req)
		if err == nil && (advice.Document != nil || strings.TrimSpace(advice.Text) != "") {
			uc.observeAdvice(AdviceSourcePrimary, started)
			return advice, nil
		}
		if err == nil {
			err = errors.New("empty advice")
		}
		slog.Warn("advice_fallback", "crop_type", req.CropType, "disease", req.Disease, "error", err)
	}

	advice, err := uc.fallback.GenerateAdvice(ctx, req)
	if err != nil {
		return domain.Advice{}, fmt.Errorf("fallback advice: %w", err)
	}
	uc.observeAdvice(AdviceSourceFallback, started)
	return advice, nil
}

func (uc *RecommendUseCase) store(ctx context.Context, analysisID string, by domain.GeneratedBy, body string) (*domain.Recommendation, error) {
	now := uc.now()
	rec := &domain.Recommendation{
		ID:          uuid.NewString(),
		AnalysisID:  analysisID,
		GeneratedBy: by,
		Content:     body,
		Status:      domain.RecommendationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.recs.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create recommendation: %w", err)
	}
	return rec, nil
}

func (uc *RecommendUseCase) ownedAnalysis(ctx context.Context, ownerID, analysisID string) (*domain.Analysis, error) {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis by id: %w", err)
	}
	if ownerID != "" && analysis.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch analysis by id", fmt.Errorf("analysis %s", analysisID))
	}
	return analysis, nil
}

func (uc *RecommendUseCase) observeAdvice(source string, started time.Time) {
	if uc.observer != nil {
		uc.observer.ObserveAdvice(source, time.Since(started))
	}
}

func renderAdvice(advice domain.Advice) (string, error) {
	if advice.Document == nil {
		return content.Encode(strings.TrimSpace(advice.Text), nil), nil
	}
	structured, err := advice.Document.AsMap()
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(advice.Document.Summary)
	if summary == "" {
		summary = defaultAdviceSummary
	}
	return content.Encode(summary, structured), nil
}

func mostConfidentValid(results []domain.ImageResult) (domain.ImageResult, bool) {
	var best domain.ImageResult
	found := false
	for _, r := range results {
		if !r.Verdict().IsValid() {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best = r
			found = true
		}
	}
	return best, found
}
