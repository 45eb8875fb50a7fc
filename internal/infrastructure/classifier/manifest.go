package classifier

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plantvillage.yaml
var defaultManifestYAML []byte

type OutputKind string

const (
	OutputProbabilities OutputKind = "probabilities"
	OutputLogits        OutputKind = "logits"
)

// Manifest describes a model artifact: its label order, input contract and
// crop aliases.
type Manifest struct {
	Name          string            `yaml:"name"`
	InputSize     int               `yaml:"input_size"`
	Normalization string            `yaml:"normalization"`
	Output        OutputKind        `yaml:"output"`
	CropAliases   map[string]string `yaml:"crop_aliases"`
	Labels        []string          `yaml:"labels"`
}

func DefaultManifest() Manifest {
	m, err := ParseManifest(defaultManifestYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded manifest is invalid: %v", err))
	}
	return m
}

// LoadManifest reads a manifest from disk; an empty path returns the embedded
// PlantVillage manifest.
func LoadManifest(path string) (Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultManifest(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

func ParseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.InputSize <= 0 {
		m.InputSize = 224
	}
	if m.Normalization == "" {
		m.Normalization = "zero_one"
	}
	if m.Output == "" {
		m.Output = OutputProbabilities
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) Validate() error {
	if len(m.Labels) < 2 {
		return fmt.Errorf("manifest %q: at least two labels required, got %d", m.Name, len(m.Labels))
	}
	seen := make(map[string]struct{}, len(m.Labels))
	for i, label := range m.Labels {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("manifest %q: label %d is empty", m.Name, i)
		}
		if _, ok := seen[label]; ok {
			return fmt.Errorf("manifest %q: duplicate label %q", m.Name, label)
		}
		seen[label] = struct{}{}
	}
	switch m.Normalization {
	case "zero_one", "minus_one_one":
	default:
		return fmt.Errorf("manifest %q: unsupported normalization %q", m.Name, m.Normalization)
	}
	switch m.Output {
	case OutputProbabilities, OutputLogits:
	default:
		return fmt.Errorf("manifest %q: unsupported output kind %q", m.Name, m.Output)
	}
	return nil
}

// Softmax converts raw logits into a probability vector.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		maxLogit = math.Max(maxLogit, v)
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
