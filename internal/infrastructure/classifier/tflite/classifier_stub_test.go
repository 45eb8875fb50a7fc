//go:build !tflite

package tflite

import (
	"testing"

	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier"
)

func TestLoadWithoutBuildTag(t *testing.T) {
	c, err := Load("model.tflite", classifier.DefaultManifest(), 1)
	if err == nil || c != nil {
		t.Fatalf("expected load to fail without tflite build tag")
	}
}
