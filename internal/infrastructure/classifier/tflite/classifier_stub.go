//go:build !tflite

package tflite

import (
	"context"
	"errors"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier"
)

const Name = "tflite"

var errNotEnabled = errors.New("tflite build tag is not enabled")

type Classifier struct{}

// Load always fails without the tflite build tag; callers fall back to the
// mock classifier.
func Load(modelPath string, manifest classifier.Manifest, threads int) (*Classifier, error) {
	_ = modelPath
	_ = manifest
	_ = threads
	return nil, errNotEnabled
}

func (c *Classifier) Name() string {
	return Name
}

func (c *Classifier) Labels() []string {
	return nil
}

func (c *Classifier) Classify(ctx context.Context, tensor domain.ImageTensor) ([]float64, error) {
	_ = ctx
	_ = tensor
	return nil, errNotEnabled
}

func (c *Classifier) Close() error {
	return nil
}
