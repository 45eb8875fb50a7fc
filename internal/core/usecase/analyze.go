package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/diagnosis"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
)

const (
	DefaultMaxImages     = 5
	DefaultMaxImageBytes = 10 << 20
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

type IntakeLimits struct {
	MaxImages     int
	MaxImageBytes int64
}

// AnalysisObserver receives the final status of each submission.
type AnalysisObserver interface {
	ObserveAnalysis(status string)
}

type AnalyzeUseCase struct {
	inference *InferenceAdapter
	repo      ports.AnalysisRepository
	storage   ports.ObjectStorage
	queue     ports.EventQueue
	limits    IntakeLimits
	observer  AnalysisObserver
	now       func() time.Time
}

func NewAnalyzeUseCase(
	inference *InferenceAdapter,
	repo ports.AnalysisRepository,
	storage ports.ObjectStorage,
	queue ports.EventQueue,
	limits IntakeLimits,
	observer AnalysisObserver,
) *AnalyzeUseCase {
	if limits.MaxImages <= 0 {
		limits.MaxImages = DefaultMaxImages
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = DefaultMaxImageBytes
	}
	return &AnalyzeUseCase{
		inference: inference,
		repo:      repo,
		storage:   storage,
		queue:     queue,
		limits:    limits,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AnalyzeUseCase) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Analysis, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "submit analysis", errors.New("owner id is required"))
	}

	inputs, err := uc.readImages(req.Images)
	if err != nil {
		uc.observe("rejected_input")
		return nil, err
	}

	results := uc.inference.AnalyzeBatch(ctx, inputs)
	aggregated, err := diagnosis.Aggregate(results, req.CropOverride)
	if err != nil {
		if aggErr, ok := domain.AsAggregationError(err); ok {
			slog.Warn("analysis_rejected", "owner_id", req.OwnerID, "kind", string(aggErr.Kind), "images", len(aggErr.Images))
			uc.observe(string(aggErr.Kind))
		}
		return nil, err
	}

	analysis, err := uc.persist(ctx, req, inputs, aggregated)
	if err != nil {
		uc.observe("failed")
		return nil, err
	}
	uc.observe(string(domain.AnalysisStatusCompleted))

	if uc.queue != nil {
		if err := uc.queue.PublishAnalysisCompleted(ctx, analysis.ID); err != nil {
			slog.Warn("publish_analysis_completed_failed", "analysis_id", analysis.ID, "error", err)
		}
	}
	return analysis, nil
}

func (uc *AnalyzeUseCase) GetByID(ctx context.Context, ownerID, id string) (*domain.Analysis, error) {
	analysis, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis by id: %w", err)
	}
	if ownerID != "" && analysis.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch analysis by id", fmt.Errorf("analysis %s", id))
	}
	return analysis, nil
}

func (uc *AnalyzeUseCase) List(ctx context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list analyses", errors.New("from must not be after to"))
	}
	items, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return items, nil
}

func (uc *AnalyzeUseCase) readImages(images []domain.UploadedImage) ([]domain.ImageInput, error) {
	if len(images) == 0 || len(images) > uc.limits.MaxImages {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"validate upload",
			fmt.Errorf("expected 1 to %d images, got %d", uc.limits.MaxImages, len(images)),
		)
	}

	inputs := make([]domain.ImageInput, 0, len(images))
	for i, img := range images {
		ref := img.Filename
		if strings.TrimSpace(ref) == "" {
			ref = fmt.Sprintf("image-%d", i+1)
		}
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(img.ContentType)), "image/") {
			return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("%s: content type %q is not an image", ref, img.ContentType))
		}
		if img.Size > uc.limits.MaxImageBytes {
			return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("%s: %d bytes exceeds limit of %d", ref, img.Size, uc.limits.MaxImageBytes))
		}
		if img.Body == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("%s: empty body", ref))
		}

		data, err := io.ReadAll(io.LimitReader(img.Body, uc.limits.MaxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref, err)
		}
		if int64(len(data)) > uc.limits.MaxImageBytes {
			return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("%s exceeds limit of %d bytes", ref, uc.limits.MaxImageBytes))
		}
		inputs = append(inputs, domain.ImageInput{Ref: ref, Data: data})
	}
	return inputs, nil
}

func (uc *AnalyzeUseCase) persist(
	ctx context.Context,
	req domain.SubmitRequest,
	inputs []domain.ImageInput,
	aggregated domain.AnalysisResult,
) (*domain.Analysis, error) {
	id := uuid.NewString()
	now := uc.now()

	analysis := &domain.Analysis{
		ID:                id,
		OwnerID:           req.OwnerID,
		CropType:          aggregated.CropType,
		PrimaryDisease:    aggregated.PrimaryDisease,
		AverageConfidence: aggregated.AverageConfidence,
		AverageSeverity:   aggregated.AverageSeverity,
		Location:          strings.TrimSpace(req.Location),
		Classifier:        uc.inference.ClassifierName(),
		Status:            domain.AnalysisStatusCompleted,
		Results:           make([]domain.ImageResult, 0, len(aggregated.PerImage)),
		CreatedAt:         now,
	}

	for i, r := range aggregated.PerImage {
		key := fmt.Sprintf("%s/%02d_%s", id, i, sanitizeFilename(inputs[i].Ref))
		if err := uc.storage.Save(ctx, key, bytes.NewReader(inputs[i].Data)); err != nil {
			return nil, fmt.Errorf("save image to object storage: %w", err)
		}
		analysis.Results = append(analysis.Results, domain.ImageResult{
			ID:          uuid.NewString(),
			AnalysisID:  id,
			Position:    i,
			ImageRef:    r.ImageRef,
			StoragePath: key,
			CropType:    r.CropType,
			Disease:     r.Disease,
			Confidence:  r.Confidence,
			Severity:    r.Severity,
			Error:       r.Error,
			CreatedAt:   now,
		})
	}

	if err := uc.repo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis record: %w", err)
	}
	return analysis, nil
}

func (uc *AnalyzeUseCase) observe(status string) {
	if uc.observer != nil {
		uc.observer.ObserveAnalysis(status)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "image.bin"
	}
	return base
}
