//go:build tflite

package tflite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier"
)

const Name = "tflite"

// Classifier runs a TensorFlow Lite model. The interpreter is not safe for
// concurrent use, so Classify serializes calls.
type Classifier struct {
	manifest    classifier.Manifest
	model       *tflite.Model
	interpreter *tflite.Interpreter

	mu sync.Mutex
}

func Load(modelPath string, manifest classifier.Manifest, threads int) (*Classifier, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", modelPath)
	}

	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	defer options.Delete()

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.New("tensor allocation failed")
	}

	output := interpreter.GetOutputTensor(0)
	if output == nil {
		interpreter.Delete()
		model.Delete()
		return nil, errors.New("cannot get output tensor")
	}
	if classes := output.Dim(output.NumDims() - 1); classes != len(manifest.Labels) {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("model has %d output classes, manifest lists %d labels", classes, len(manifest.Labels))
	}

	return &Classifier{manifest: manifest, model: model, interpreter: interpreter}, nil
}

func (c *Classifier) Name() string {
	return Name
}

func (c *Classifier) Labels() []string {
	return append([]string(nil), c.manifest.Labels...)
}

func (c *Classifier) Classify(ctx context.Context, tensor domain.ImageTensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.New("cannot get input tensor")
	}
	dst := input.Float32s()
	if len(dst) != len(tensor.Data) {
		return nil, fmt.Errorf("input tensor expects %d values, got %d", len(dst), len(tensor.Data))
	}
	copy(dst, tensor.Data)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New("tensor invoke failed")
	}

	output := c.interpreter.GetOutputTensor(0)
	raw := output.Float32s()
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	if c.manifest.Output == classifier.OutputLogits {
		out = classifier.Softmax(out)
	}
	return out, nil
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
