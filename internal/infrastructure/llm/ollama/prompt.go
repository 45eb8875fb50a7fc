package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const adviceSchema = `{
  "crop_type": string,
  "disease_detected": string,
  "severity_level": "low" | "medium" | "high",
  "confidence": number,
  "location": string,
  "summary": "2-3 sentences on the situation and overall recommendation",
  "immediate_actions": [{"step": number, "title": string, "description": string}],
  "treatment_recommendations": {
    "organic_options": [{"treatment": string, "description": string, "safety_notes": string}],
    "chemical_options": [{"treatment": string, "description": string, "safety_warnings": string}]
  },
  "prevention_measures": [{"measure": string, "description": string}],
  "expert_help_indicators": [string],
  "recovery_timeline": {"expected_duration": string, "factors_affecting_recovery": string, "monitoring_frequency": string},
  "additional_notes": string
}`

func buildAdvicePrompt(req domain.AdviceRequest) string {
	var b strings.Builder
	b.WriteString("You are an expert agricultural advisor. Give a farmer practical, safe and actionable advice.\n\n")
	b.WriteString("Crop analysis:\n")
	fmt.Fprintf(&b, "- Crop type: %s\n", req.CropType)
	fmt.Fprintf(&b, "- Disease detected: %s\n", req.Disease)
	fmt.Fprintf(&b, "- Severity level: %s\n", req.Severity)
	fmt.Fprintf(&b, "- Detection confidence: %.0f%%\n", req.Confidence*100)
	if loc := strings.TrimSpace(req.Location); loc != "" {
		fmt.Fprintf(&b, "- Location: %s\n", loc)
	}
	b.WriteString("\nReturn strict JSON object with this shape and three immediate actions.\n")
	b.WriteString("No markdown, no text outside the object.\n\n")
	b.WriteString(adviceSchema)
	b.WriteString("\n\nKeep recommendations suitable for small to medium-scale farmers.\n")
	return b.String()
}
