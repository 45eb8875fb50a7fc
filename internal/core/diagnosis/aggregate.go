package diagnosis

import (
	"errors"
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

var errNoResults = errors.New("no image results")

// Aggregate resolves a single diagnosis from per-image verdicts. Invalid and
// errored images are kept in PerImage but do not vote.
func Aggregate(results []domain.PerImageResult, cropOverride string) (domain.AnalysisResult, error) {
	if len(results) == 0 {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrInvalidInput, "aggregate", errNoResults)
	}

	valid := make([]domain.PerImageResult, 0, len(results))
	invalidCount := 0
	for _, r := range results {
		switch {
		case r.IsInvalid():
			invalidCount++
		case r.IsErrored():
		default:
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return domain.AnalysisResult{}, rejectionError(results, invalidCount)
	}

	crops := make([]string, 0, len(valid))
	diseases := make([]string, 0, len(valid))
	confidenceSum := 0.0
	weightSum := 0.0
	for _, r := range valid {
		crops = append(crops, r.CropType)
		diseases = append(diseases, r.Disease)
		confidenceSum += r.Confidence
		weight, ok := severityWeight(r.Severity)
		if !ok {
			weight = 1
		}
		weightSum += weight
	}

	crop := stableMode(crops)
	if override := strings.TrimSpace(cropOverride); override != "" {
		crop = override
	}

	perImage := make([]domain.PerImageResult, len(results))
	copy(perImage, results)

	n := float64(len(valid))
	return domain.AnalysisResult{
		CropType:          crop,
		PrimaryDisease:    stableMode(diseases),
		AverageConfidence: confidenceSum / n,
		AverageSeverity:   severityFromWeight(weightSum / n),
		PerImage:          perImage,
	}, nil
}

// A batch mixing invalid and errored images is reported as AllImagesInvalid.
func rejectionError(results []domain.PerImageResult, invalidCount int) *domain.AggregationError {
	kind := domain.AllImagesErrored
	if invalidCount > 0 {
		kind = domain.AllImagesInvalid
	}
	images := make([]domain.RejectedImage, 0, len(results))
	for _, r := range results {
		reason := r.Error
		if reason == "" {
			reason = r.Disease
		}
		images = append(images, domain.RejectedImage{ImageRef: r.ImageRef, Reason: reason})
	}
	return &domain.AggregationError{Kind: kind, Images: images}
}

// stableMode returns the most frequent value; ties go to the value seen first.
func stableMode(values []string) string {
	counts := make(map[string]int, len(values))
	best := ""
	bestCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}
