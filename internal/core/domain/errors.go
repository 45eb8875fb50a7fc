package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
	ErrImagePreprocess  = errors.New("image preprocess failed")
	ErrImplausibleImage = errors.New("implausible image")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type AggregationFailureKind string

const (
	AllImagesInvalid AggregationFailureKind = "all_images_invalid"
	AllImagesErrored AggregationFailureKind = "all_images_errored"
)

type RejectedImage struct {
	ImageRef string `json:"image_ref"`
	Reason   string `json:"reason"`
}

// AggregationError is the batch-level failure returned when no image in a
// batch produced a usable verdict.
type AggregationError struct {
	Kind   AggregationFailureKind `json:"kind"`
	Images []RejectedImage        `json:"images"`
}

func (e *AggregationError) Error() string {
	if e == nil {
		return "aggregation failed"
	}
	refs := make([]string, 0, len(e.Images))
	for _, img := range e.Images {
		refs = append(refs, img.ImageRef)
	}
	return fmt.Sprintf("aggregation failed: %s: [%s]", e.Kind, strings.Join(refs, ", "))
}

func AsAggregationError(err error) (*AggregationError, bool) {
	var aggErr *AggregationError
	if errors.As(err, &aggErr) {
		return aggErr, true
	}
	return nil, false
}
