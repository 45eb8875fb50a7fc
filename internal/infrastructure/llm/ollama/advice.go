package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const SourceName = "ollama"

var errMalformedAdvice = errors.New("malformed advice response")

// AdviceGenerator asks an Ollama model for a structured advice document.
type AdviceGenerator struct {
	client *Client
}

func NewAdviceGenerator(client *Client) *AdviceGenerator {
	return &AdviceGenerator{client: client}
}

func (g *AdviceGenerator) GenerateAdvice(ctx context.Context, req domain.AdviceRequest) (domain.Advice, error) {
	raw, err := g.client.generateJSON(ctx, buildAdvicePrompt(req))
	if err != nil {
		return domain.Advice{}, err
	}
	return parseAdvice(raw, req)
}

// parseAdvice accepts a JSON object, optionally inside a markdown fence. A reply
// with no object at all is kept as plain text.
func parseAdvice(raw string, req domain.AdviceRequest) (domain.Advice, error) {
	text := stripCodeFence(raw)
	if strings.TrimSpace(text) == "" {
		return domain.Advice{}, fmt.Errorf("%w: empty response", errMalformedAdvice)
	}

	object, ok := extractJSONObject(text)
	if !ok {
		return domain.Advice{Text: text, Source: SourceName}, nil
	}

	var doc domain.AdviceDocument
	if err := json.Unmarshal([]byte(object), &doc); err != nil {
		return domain.Advice{}, fmt.Errorf("%w: %w", errMalformedAdvice, err)
	}
	fillEcho(&doc, req)
	return domain.Advice{Document: &doc, Source: SourceName}, nil
}

func fillEcho(doc *domain.AdviceDocument, req domain.AdviceRequest) {
	if strings.TrimSpace(doc.CropType) == "" {
		doc.CropType = req.CropType
	}
	if strings.TrimSpace(doc.DiseaseDetected) == "" {
		doc.DiseaseDetected = req.Disease
	}
	if doc.SeverityLevel == "" {
		doc.SeverityLevel = req.Severity
	}
	if doc.Confidence == 0 {
		doc.Confidence = req.Confidence
	}
	if doc.Location == "" {
		doc.Location = req.Location
	}
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
		text = text[nl+1:]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}
