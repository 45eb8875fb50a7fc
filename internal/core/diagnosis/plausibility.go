package diagnosis

import (
	"math"
	"sort"
	"strings"
)

const entropyEpsilon = 1e-10

type Rule string

const (
	RuleNone             Rule = ""
	RuleDegenerate       Rule = "degenerate_distribution"
	RuleLowConfidence    Rule = "low_confidence"
	RuleHighConfidence   Rule = "suspicious_confidence"
	RuleTopTwoTooClose   Rule = "top_two_too_close"
	RuleHighEntropy      Rule = "high_entropy"
	RuleLowConcentration Rule = "low_top_five_mass"
	RuleHealthyTooSure   Rule = "suspicious_healthy_confidence"
)

type Thresholds struct {
	MinConfidence        float64
	MaxConfidence        float64
	MaxTopTwoRatio       float64
	MaxNormalizedEntropy float64
	MinTopFiveMass       float64
	MaxHealthyConfidence float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:        0.4,
		MaxConfidence:        0.95,
		MaxTopTwoRatio:       0.7,
		MaxNormalizedEntropy: 0.7,
		MinTopFiveMass:       0.8,
		MaxHealthyConfidence: 0.9,
	}
}

// Verdict carries the first rule that rejected the distribution, if any,
// together with the statistics the rules were evaluated on.
type Verdict struct {
	Plausible         bool
	Rule              Rule
	Confidence        float64
	TopTwoRatio       float64
	NormalizedEntropy float64
	TopFiveMass       float64
}

// PlausibilityGate rejects classifier outputs that are statistically unlikely
// to describe a diagnosable plant image.
type PlausibilityGate struct {
	labels     []string
	thresholds Thresholds
}

func NewPlausibilityGate(labels []string, thresholds Thresholds) *PlausibilityGate {
	return &PlausibilityGate{
		labels:     append([]string(nil), labels...),
		thresholds: thresholds,
	}
}

func (g *PlausibilityGate) IsPlausible(confidence float64, predictedIndex int, probabilities []float64) bool {
	return g.Evaluate(confidence, predictedIndex, probabilities).Plausible
}

func (g *PlausibilityGate) Evaluate(confidence float64, predictedIndex int, probabilities []float64) Verdict {
	verdict := Verdict{Confidence: confidence}
	if len(probabilities) < 2 || predictedIndex < 0 || predictedIndex >= len(probabilities) || math.IsNaN(confidence) {
		verdict.Rule = RuleDegenerate
		return verdict
	}
	for _, p := range probabilities {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			verdict.Rule = RuleDegenerate
			return verdict
		}
	}

	t := g.thresholds
	if confidence < t.MinConfidence {
		verdict.Rule = RuleLowConfidence
		return verdict
	}
	if confidence > t.MaxConfidence {
		verdict.Rule = RuleHighConfidence
		return verdict
	}

	sorted := append([]float64(nil), probabilities...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	verdict.TopTwoRatio = 1
	if sorted[0] > 0 {
		verdict.TopTwoRatio = sorted[1] / sorted[0]
	}
	if verdict.TopTwoRatio > t.MaxTopTwoRatio {
		verdict.Rule = RuleTopTwoTooClose
		return verdict
	}

	verdict.NormalizedEntropy = NormalizedEntropy(probabilities)
	if verdict.NormalizedEntropy > t.MaxNormalizedEntropy {
		verdict.Rule = RuleHighEntropy
		return verdict
	}

	for i := 0; i < len(sorted) && i < 5; i++ {
		verdict.TopFiveMass += sorted[i]
	}
	if verdict.TopFiveMass < t.MinTopFiveMass {
		verdict.Rule = RuleLowConcentration
		return verdict
	}

	if predictedIndex < len(g.labels) &&
		strings.Contains(strings.ToLower(g.labels[predictedIndex]), "healthy") &&
		confidence > t.MaxHealthyConfidence {
		verdict.Rule = RuleHealthyTooSure
		return verdict
	}

	verdict.Plausible = true
	return verdict
}

// NormalizedEntropy is the Shannon entropy of the distribution divided by
// ln(N), so a uniform vector scores 1.
func NormalizedEntropy(probabilities []float64) float64 {
	if len(probabilities) < 2 {
		return 0
	}
	entropy := 0.0
	for _, p := range probabilities {
		entropy -= p * math.Log(p+entropyEpsilon)
	}
	return entropy / math.Log(float64(len(probabilities)))
}

// ArgMax returns the index of the largest probability, first wins on ties.
func ArgMax(probabilities []float64) int {
	if len(probabilities) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(probabilities); i++ {
		if probabilities[i] > probabilities[best] {
			best = i
		}
	}
	return best
}
