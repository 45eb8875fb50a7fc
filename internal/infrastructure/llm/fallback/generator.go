// Package fallback produces deterministic advice from embedded templates. It
// never fails, so it can always stand in for a language model.
package fallback

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const SourceName = "fallback"

//go:embed templates.yaml
var templatesYAML []byte

type templateSet struct {
	Shared struct {
		ExpertHelpIndicators []string                `yaml:"expert_help_indicators"`
		RecoveryTimeline     domain.RecoveryTimeline `yaml:"recovery_timeline"`
		AdditionalNotes      string                  `yaml:"additional_notes"`
	} `yaml:"shared"`
	Healthy template `yaml:"healthy"`
	Disease template `yaml:"disease"`
}

type template struct {
	Summary          string `yaml:"summary"`
	ImmediateActions []struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"immediate_actions"`
	OrganicOptions     []domain.OrganicOption     `yaml:"organic_options"`
	ChemicalOptions    []domain.ChemicalOption    `yaml:"chemical_options"`
	PreventionMeasures []domain.PreventionMeasure `yaml:"prevention_measures"`
}

type Generator struct {
	templates templateSet
}

func New() (*Generator, error) {
	var set templateSet
	if err := yaml.Unmarshal(templatesYAML, &set); err != nil {
		return nil, fmt.Errorf("parse fallback templates: %w", err)
	}
	if set.Healthy.Summary == "" || set.Disease.Summary == "" {
		return nil, fmt.Errorf("parse fallback templates: missing summary")
	}
	return &Generator{templates: set}, nil
}

func (g *Generator) GenerateAdvice(_ context.Context, req domain.AdviceRequest) (domain.Advice, error) {
	tpl := g.templates.Disease
	if req.IsHealthy() {
		tpl = g.templates.Healthy
	}

	fill := strings.NewReplacer(
		"{crop}", req.CropType,
		"{disease}", req.Disease,
		"{severity}", string(req.Severity),
	)

	doc := &domain.AdviceDocument{
		CropType:        req.CropType,
		DiseaseDetected: req.Disease,
		SeverityLevel:   req.Severity,
		Confidence:      req.Confidence,
		Location:        req.Location,
		Summary:         fill.Replace(tpl.Summary),
		TreatmentRecommendations: domain.TreatmentRecommendations{
			OrganicOptions:  append([]domain.OrganicOption(nil), tpl.OrganicOptions...),
			ChemicalOptions: append([]domain.ChemicalOption(nil), tpl.ChemicalOptions...),
		},
		PreventionMeasures:   append([]domain.PreventionMeasure(nil), tpl.PreventionMeasures...),
		ExpertHelpIndicators: append([]string(nil), g.templates.Shared.ExpertHelpIndicators...),
		RecoveryTimeline:     g.templates.Shared.RecoveryTimeline,
		AdditionalNotes:      g.templates.Shared.AdditionalNotes,
	}
	for i, action := range tpl.ImmediateActions {
		doc.ImmediateActions = append(doc.ImmediateActions, domain.ActionStep{
			Step:        i + 1,
			Title:       action.Title,
			Description: action.Description,
		})
	}
	return domain.Advice{Document: doc, Source: SourceName}, nil
}
