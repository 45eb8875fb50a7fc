package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/diagnosis"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

var testLabels = []string{
	"Tomato___Late_blight",
	"Tomato___Early_blight",
	"Tomato___healthy",
	"Corn_(maize)___Common_rust_",
	"Potato___Late_blight",
	"Apple___Apple_scab",
}

type preprocessorFake struct {
	failOn map[string]bool
}

func (f *preprocessorFake) Preprocess(_ context.Context, data []byte) (domain.ImageTensor, error) {
	if f.failOn[string(data)] {
		return domain.ImageTensor{}, domain.WrapError(domain.ErrImagePreprocess, "decode image", errors.New("truncated"))
	}
	return domain.ImageTensor{Data: []float32{float32(len(data))}, Width: 1, Height: 1, Channels: 1}, nil
}

// classifierFake keys distributions by the tensor's first value, which the
// preprocessor fake sets to the payload length.
type classifierFake struct {
	name   string
	byLen  map[int][]float64
	delays map[int]time.Duration
	panics bool
	err    error
}

func (f *classifierFake) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *classifierFake) Labels() []string {
	return testLabels
}

func (f *classifierFake) Classify(_ context.Context, tensor domain.ImageTensor) ([]float64, error) {
	if f.panics {
		panic("interpreter crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	key := int(tensor.Data[0])
	if d := f.delays[key]; d > 0 {
		time.Sleep(d)
	}
	probs, ok := f.byLen[key]
	if !ok {
		return nil, errors.New("no scripted output")
	}
	return probs, nil
}

type observerFake struct {
	mu       sync.Mutex
	outcomes []ImageOutcome
	rules    []string
}

func (o *observerFake) ObserveImage(_ string, outcome ImageOutcome, rule string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.rules = append(o.rules, rule)
}

func peaked(idx int, top float64) []float64 {
	out := make([]float64, len(testLabels))
	rest := (1 - top) / float64(len(testLabels)-1)
	for i := range out {
		out[i] = rest
	}
	out[idx] = top
	return out
}

func newTestAdapter(classifier *classifierFake, pre *preprocessorFake, observer InferenceObserver) *InferenceAdapter {
	if pre == nil {
		pre = &preprocessorFake{}
	}
	gate := diagnosis.NewPlausibilityGate(testLabels, diagnosis.DefaultThresholds())
	return NewInferenceAdapter(pre, classifier, gate, nil, 2, observer)
}

func TestAnalyzeOneValidImage(t *testing.T) {
	adapter := newTestAdapter(&classifierFake{byLen: map[int][]float64{3: peaked(0, 0.85)}}, nil, nil)

	got := adapter.AnalyzeOne(context.Background(), domain.ImageInput{Ref: "leaf.jpg", Data: []byte("abc")})
	if got.CropType != "Tomato" || got.Disease != "Late Blight" {
		t.Fatalf("unexpected diagnosis %+v", got)
	}
	if got.Confidence != 0.85 || got.Severity != domain.SeverityHigh {
		t.Fatalf("unexpected confidence/severity %+v", got)
	}
	if !got.IsValid() || got.Error != "" {
		t.Fatalf("expected valid result, got %+v", got)
	}
}

func TestAnalyzeOneRejectsImplausibleImage(t *testing.T) {
	observer := &observerFake{}
	adapter := newTestAdapter(&classifierFake{byLen: map[int][]float64{3: peaked(1, 0.3)}}, nil, observer)

	got := adapter.AnalyzeOne(context.Background(), domain.ImageInput{Ref: "cat.jpg", Data: []byte("abc")})
	if !got.IsInvalid() {
		t.Fatalf("expected invalid result, got %+v", got)
	}
	if got.CropType != domain.UnknownCrop || got.Disease != domain.NotAPlantDisease || got.Error != domain.NotAPlantUserNotice {
		t.Fatalf("unexpected invalid result %+v", got)
	}
	if got.Confidence != 0.3 {
		t.Fatalf("expected confidence to be kept on rejection, got %f", got.Confidence)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != OutcomeInvalid || observer.rules[0] != string(diagnosis.RuleLowConfidence) {
		t.Fatalf("unexpected observations %+v %+v", observer.outcomes, observer.rules)
	}
}

func TestAnalyzeOneConvertsFailuresToErrorResults(t *testing.T) {
	cases := map[string]struct {
		classifier *classifierFake
		pre        *preprocessorFake
		contains   string
	}{
		"preprocess": {
			classifier: &classifierFake{},
			pre:        &preprocessorFake{failOn: map[string]bool{"abc": true}},
			contains:   "truncated",
		},
		"classifier error": {
			classifier: &classifierFake{err: errors.New("model unavailable")},
			contains:   "model unavailable",
		},
		"classifier panic": {
			classifier: &classifierFake{panics: true},
			contains:   "interpreter crashed",
		},
		"short vector": {
			classifier: &classifierFake{byLen: map[int][]float64{3: {0.9, 0.1}}},
			contains:   "2 scores for 6 labels",
		},
	}

	for name, tc := range cases {
		adapter := newTestAdapter(tc.classifier, tc.pre, nil)
		got := adapter.AnalyzeOne(context.Background(), domain.ImageInput{Ref: "x.jpg", Data: []byte("abc")})
		if !got.IsErrored() {
			t.Fatalf("%s: expected error result, got %+v", name, got)
		}
		if got.Confidence != 0 || got.Severity != domain.SeverityLow || got.CropType != domain.UnknownCrop {
			t.Fatalf("%s: unexpected error result shape %+v", name, got)
		}
		if !strings.HasPrefix(got.Error, "Error processing image: ") || !strings.Contains(got.Error, tc.contains) {
			t.Fatalf("%s: unexpected error message %q", name, got.Error)
		}
	}
}

func TestAnalyzeBatchKeepsSubmissionOrder(t *testing.T) {
	classifier := &classifierFake{
		byLen: map[int][]float64{
			1: peaked(0, 0.85),
			2: peaked(3, 0.9),
			3: peaked(4, 0.7),
			4: peaked(5, 0.88),
		},
		delays: map[int]time.Duration{1: 30 * time.Millisecond, 2: 10 * time.Millisecond},
	}
	observer := &observerFake{}
	adapter := newTestAdapter(classifier, nil, observer)

	images := []domain.ImageInput{
		{Ref: "1.jpg", Data: []byte("a")},
		{Ref: "2.jpg", Data: []byte("ab")},
		{Ref: "3.jpg", Data: []byte("abc")},
		{Ref: "4.jpg", Data: []byte("abcd")},
	}
	results := adapter.AnalyzeBatch(context.Background(), images)
	if len(results) != len(images) {
		t.Fatalf("expected %d results, got %d", len(images), len(results))
	}
	for i, r := range results {
		if r.ImageRef != images[i].Ref {
			t.Fatalf("result %d has ref %s, expected %s", i, r.ImageRef, images[i].Ref)
		}
	}
	if results[1].CropType != "Maize" || results[1].Disease != "Common Rust" {
		t.Fatalf("unexpected second result %+v", results[1])
	}
	if len(observer.outcomes) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(observer.outcomes))
	}
}
