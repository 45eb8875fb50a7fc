package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/diagnosis"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
)

const DefaultInferenceParallelism = 2

type ImageOutcome string

const (
	OutcomeValid   ImageOutcome = "valid"
	OutcomeInvalid ImageOutcome = "invalid"
	OutcomeError   ImageOutcome = "error"
)

// InferenceObserver receives one call per analyzed image.
type InferenceObserver interface {
	ObserveImage(classifier string, outcome ImageOutcome, rule string, duration time.Duration)
}

type InferenceAdapter struct {
	preprocessor ports.ImagePreprocessor
	classifier   ports.ImageClassifier
	gate         *diagnosis.PlausibilityGate
	taxonomy     *diagnosis.Taxonomy
	labels       []string
	parallelism  int
	observer     InferenceObserver
}

func NewInferenceAdapter(
	preprocessor ports.ImagePreprocessor,
	classifier ports.ImageClassifier,
	gate *diagnosis.PlausibilityGate,
	taxonomy *diagnosis.Taxonomy,
	parallelism int,
	observer InferenceObserver,
) *InferenceAdapter {
	if parallelism <= 0 {
		parallelism = DefaultInferenceParallelism
	}
	if taxonomy == nil {
		taxonomy = diagnosis.NewTaxonomy(nil)
	}
	labels := classifier.Labels()
	if gate == nil {
		gate = diagnosis.NewPlausibilityGate(labels, diagnosis.DefaultThresholds())
	}
	return &InferenceAdapter{
		preprocessor: preprocessor,
		classifier:   classifier,
		gate:         gate,
		taxonomy:     taxonomy,
		labels:       labels,
		parallelism:  parallelism,
		observer:     observer,
	}
}

func (a *InferenceAdapter) ClassifierName() string {
	return a.classifier.Name()
}

// AnalyzeOne never returns an error: failures become an Error result and
// rejected images become an invalid result.
func (a *InferenceAdapter) AnalyzeOne(ctx context.Context, image domain.ImageInput) domain.PerImageResult {
	started := time.Now()
	result, outcome, rule := a.recoverAnalyze(ctx, image)
	if a.observer != nil {
		a.observer.ObserveImage(a.classifier.Name(), outcome, rule, time.Since(started))
	}
	return result
}

// AnalyzeBatch returns results in submission order.
func (a *InferenceAdapter) AnalyzeBatch(ctx context.Context, images []domain.ImageInput) []domain.PerImageResult {
	results := make([]domain.PerImageResult, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, image := range images {
		g.Go(func() error {
			results[i] = a.AnalyzeOne(gctx, image)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *InferenceAdapter) recoverAnalyze(ctx context.Context, image domain.ImageInput) (result domain.PerImageResult, outcome ImageOutcome, rule string) {
	defer func() {
		if r := recover(); r != nil {
			result, outcome, rule = a.errorResult(image, fmt.Errorf("classifier panic: %v", r)), OutcomeError, ""
		}
	}()
	return a.analyze(ctx, image)
}

func (a *InferenceAdapter) analyze(ctx context.Context, image domain.ImageInput) (domain.PerImageResult, ImageOutcome, string) {
	tensor, err := a.preprocessor.Preprocess(ctx, image.Data)
	if err != nil {
		return a.errorResult(image, fmt.Errorf("preprocess: %w", err)), OutcomeError, ""
	}

	probabilities, err := a.classifier.Classify(ctx, tensor)
	if err != nil {
		return a.errorResult(image, fmt.Errorf("classify: %w", err)), OutcomeError, ""
	}
	if len(probabilities) != len(a.labels) {
		err := fmt.Errorf("classifier returned %d scores for %d labels", len(probabilities), len(a.labels))
		return a.errorResult(image, err), OutcomeError, ""
	}

	idx := diagnosis.ArgMax(probabilities)
	confidence := 0.0
	if idx >= 0 {
		confidence = probabilities[idx]
	}

	verdict := a.gate.Evaluate(confidence, idx, probabilities)
	if !verdict.Plausible {
		slog.Warn("image_rejected",
			"image_ref", image.Ref,
			"rule", string(verdict.Rule),
			"confidence", verdict.Confidence,
			"top_two_ratio", verdict.TopTwoRatio,
			"normalized_entropy", verdict.NormalizedEntropy,
			"top_five_mass", verdict.TopFiveMass,
		)
		return domain.PerImageResult{
			ImageRef:   image.Ref,
			CropType:   domain.UnknownCrop,
			Disease:    domain.NotAPlantDisease,
			Confidence: confidence,
			Severity:   domain.SeverityInvalid,
			Error:      domain.NotAPlantUserNotice,
		}, OutcomeInvalid, string(verdict.Rule)
	}

	crop, disease := a.taxonomy.Parse(a.labels[idx])
	return domain.PerImageResult{
		ImageRef:   image.Ref,
		CropType:   crop,
		Disease:    disease,
		Confidence: confidence,
		Severity:   diagnosis.Grade(disease, confidence),
	}, OutcomeValid, ""
}

func (a *InferenceAdapter) errorResult(image domain.ImageInput, err error) domain.PerImageResult {
	slog.Error("image_analysis_failed", "image_ref", image.Ref, "classifier", a.classifier.Name(), "error", err)
	return domain.PerImageResult{
		ImageRef:   image.Ref,
		CropType:   domain.UnknownCrop,
		Disease:    domain.ErrorDisease,
		Confidence: 0,
		Severity:   domain.SeverityLow,
		Error:      "Error processing image: " + err.Error(),
	}
}
