package diagnosis

import (
	"testing"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

func TestGrade(t *testing.T) {
	cases := []struct {
		disease    string
		confidence float64
		expect     domain.Severity
	}{
		{disease: "Late Blight", confidence: 0.9, expect: domain.SeverityHigh},
		{disease: "Late Blight", confidence: 0.7, expect: domain.SeverityMedium},
		{disease: "Late Blight", confidence: 0.5, expect: domain.SeverityLow},
		{disease: "Late Blight", confidence: 0.8, expect: domain.SeverityMedium},
		{disease: "Black Rot", confidence: 0.81, expect: domain.SeverityHigh},
		{disease: "Cedar Apple Rust", confidence: 0.61, expect: domain.SeverityMedium},
		{disease: "Bacterial Spot", confidence: 0.6, expect: domain.SeverityLow},
		{disease: "Healthy", confidence: 0.99, expect: domain.SeverityLow},
		{disease: "healthy", confidence: 0.2, expect: domain.SeverityLow},
		{disease: "Powdery Mildew", confidence: 0.9, expect: domain.SeverityMedium},
		{disease: "Powdery Mildew", confidence: 0.85, expect: domain.SeverityLow},
		{disease: "Tomato Mosaic Virus", confidence: 0.4, expect: domain.SeverityLow},
	}

	for _, tc := range cases {
		if got := Grade(tc.disease, tc.confidence); got != tc.expect {
			t.Fatalf("Grade(%q, %.2f) = %s, expected %s", tc.disease, tc.confidence, got, tc.expect)
		}
	}
}

func TestSeverityFromWeightThresholds(t *testing.T) {
	cases := map[float64]domain.Severity{
		1.0:     domain.SeverityLow,
		1.49:    domain.SeverityLow,
		1.5:     domain.SeverityMedium,
		7.0 / 3: domain.SeverityMedium,
		2.5:     domain.SeverityHigh,
		3.0:     domain.SeverityHigh,
	}
	for avg, expect := range cases {
		if got := severityFromWeight(avg); got != expect {
			t.Fatalf("severityFromWeight(%.3f) = %s, expected %s", avg, got, expect)
		}
	}
}
