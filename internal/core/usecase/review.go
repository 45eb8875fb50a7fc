package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/content"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 200
)

// ReviewUseCase is the admin workflow over stored recommendations. Human input
// is only ever appended to content.
type ReviewUseCase struct {
	recs ports.RecommendationRepository
}

func NewReviewUseCase(recs ports.RecommendationRepository) *ReviewUseCase {
	return &ReviewUseCase{recs: recs}
}

func (uc *ReviewUseCase) List(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultReviewLimit
	}
	if filter.Limit > maxReviewLimit {
		filter.Limit = maxReviewLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	items, err := uc.recs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return items, nil
}

func (uc *ReviewUseCase) Review(
	ctx context.Context,
	id string,
	status domain.RecommendationStatus,
	comment string,
) (*domain.Recommendation, error) {
	if !status.IsReviewVerdict() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review recommendation", fmt.Errorf("status %q must be approved or rejected", status))
	}
	if _, err := uc.load(ctx, id); err != nil {
		return nil, err
	}

	comment = strings.TrimSpace(comment)
	if comment == "" {
		if err := uc.recs.UpdateStatus(ctx, id, status); err != nil {
			return nil, fmt.Errorf("update recommendation status: %w", err)
		}
	} else {
		section := content.AnnotationSection(content.AdminCommentLabel, comment)
		if err := uc.recs.AppendContent(ctx, id, section, status); err != nil {
			return nil, fmt.Errorf("append admin comment: %w", err)
		}
	}
	return uc.load(ctx, id)
}

func (uc *ReviewUseCase) Respond(ctx context.Context, id, response string) (*domain.Recommendation, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "respond to opinion", errors.New("expert response is required"))
	}
	if _, err := uc.loadOpinion(ctx, id); err != nil {
		return nil, err
	}

	section := content.AnnotationSection(content.ExpertResponseLabel, response)
	if err := uc.recs.AppendContent(ctx, id, section, domain.RecommendationResponded); err != nil {
		return nil, fmt.Errorf("append expert response: %w", err)
	}
	return uc.load(ctx, id)
}

func (uc *ReviewUseCase) SetOpinionStatus(ctx context.Context, id string, status domain.RecommendationStatus) (*domain.Recommendation, error) {
	if !status.IsOpinionStatus() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update opinion status", fmt.Errorf("status %q must be pending, responded or closed", status))
	}
	if _, err := uc.loadOpinion(ctx, id); err != nil {
		return nil, err
	}
	if err := uc.recs.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update opinion status: %w", err)
	}
	return uc.load(ctx, id)
}

func (uc *ReviewUseCase) Delete(ctx context.Context, id string) error {
	if err := uc.recs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete recommendation: %w", err)
	}
	return nil
}

func (uc *ReviewUseCase) load(ctx context.Context, id string) (*domain.Recommendation, error) {
	rec, err := uc.recs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch recommendation by id: %w", err)
	}
	return rec, nil
}

func (uc *ReviewUseCase) loadOpinion(ctx context.Context, id string) (*domain.Recommendation, error) {
	rec, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.GeneratedBy != domain.GeneratedByHuman || !content.IsOpinionRequest(rec.Content) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load opinion request", fmt.Errorf("recommendation %s is not an opinion request", id))
	}
	return rec, nil
}
