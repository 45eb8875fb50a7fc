package diagnosis

import (
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

// Severity thresholds are tuned separately from the plausibility gate.
const (
	highImpactHighAbove   = 0.8
	highImpactMediumAbove = 0.6
	otherMediumAbove      = 0.85
)

var highImpactKeywords = []string{"blight", "rot", "rust", "spot"}

func Grade(disease string, confidence float64) domain.Severity {
	lower := strings.ToLower(disease)
	if strings.Contains(lower, "healthy") {
		return domain.SeverityLow
	}

	for _, keyword := range highImpactKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		switch {
		case confidence > highImpactHighAbove:
			return domain.SeverityHigh
		case confidence > highImpactMediumAbove:
			return domain.SeverityMedium
		default:
			return domain.SeverityLow
		}
	}

	if confidence > otherMediumAbove {
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

func severityWeight(s domain.Severity) (float64, bool) {
	switch s {
	case domain.SeverityLow:
		return 1, true
	case domain.SeverityMedium:
		return 2, true
	case domain.SeverityHigh:
		return 3, true
	default:
		return 0, false
	}
}

func severityFromWeight(avg float64) domain.Severity {
	switch {
	case avg >= 2.5:
		return domain.SeverityHigh
	case avg >= 1.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
