package domain

import (
	"encoding/json"
	"time"
)

type RecommendationStatus string

const (
	RecommendationPending   RecommendationStatus = "pending"
	RecommendationApproved  RecommendationStatus = "approved"
	RecommendationRejected  RecommendationStatus = "rejected"
	RecommendationResponded RecommendationStatus = "responded"
	RecommendationClosed    RecommendationStatus = "closed"
)

func (s RecommendationStatus) IsReviewVerdict() bool {
	return s == RecommendationApproved || s == RecommendationRejected
}

func (s RecommendationStatus) IsOpinionStatus() bool {
	return s == RecommendationPending || s == RecommendationResponded || s == RecommendationClosed
}

type GeneratedBy string

const (
	GeneratedByAI    GeneratedBy = "ai"
	GeneratedByHuman GeneratedBy = "human"
)

type Recommendation struct {
	ID          string               `json:"id"`
	AnalysisID  string               `json:"analysis_id"`
	GeneratedBy GeneratedBy          `json:"generated_by"`
	Content     string               `json:"content"`
	Status      RecommendationStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type RecommendationFilter struct {
	Status      RecommendationStatus
	GeneratedBy GeneratedBy
	Limit       int
	Offset      int
}

// AdviceRequest is the diagnosis an advice generator is asked to explain.
type AdviceRequest struct {
	CropType   string   `json:"crop_type"`
	Disease    string   `json:"disease"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Location   string   `json:"location,omitempty"`
}

func (r AdviceRequest) IsHealthy() bool {
	return containsFold(r.Disease, "healthy")
}

type ActionStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type OrganicOption struct {
	Treatment   string `json:"treatment" yaml:"treatment"`
	Description string `json:"description" yaml:"description"`
	SafetyNotes string `json:"safety_notes" yaml:"safety_notes"`
}

type ChemicalOption struct {
	Treatment      string `json:"treatment" yaml:"treatment"`
	Description    string `json:"description" yaml:"description"`
	SafetyWarnings string `json:"safety_warnings" yaml:"safety_warnings"`
}

type TreatmentRecommendations struct {
	OrganicOptions  []OrganicOption  `json:"organic_options"`
	ChemicalOptions []ChemicalOption `json:"chemical_options"`
}

type PreventionMeasure struct {
	Measure     string `json:"measure" yaml:"measure"`
	Description string `json:"description" yaml:"description"`
}

type RecoveryTimeline struct {
	ExpectedDuration         string `json:"expected_duration" yaml:"expected_duration"`
	FactorsAffectingRecovery string `json:"factors_affecting_recovery" yaml:"factors_affecting_recovery"`
	MonitoringFrequency      string `json:"monitoring_frequency" yaml:"monitoring_frequency"`
}

// AdviceDocument is the structured advice payload stored after the
// STRUCTURED_DATA marker of a recommendation.
type AdviceDocument struct {
	CropType                 string                   `json:"crop_type"`
	DiseaseDetected          string                   `json:"disease_detected"`
	SeverityLevel            Severity                 `json:"severity_level"`
	Confidence               float64                  `json:"confidence"`
	Location                 string                   `json:"location,omitempty"`
	Summary                  string                   `json:"summary"`
	ImmediateActions         []ActionStep             `json:"immediate_actions"`
	TreatmentRecommendations TreatmentRecommendations `json:"treatment_recommendations"`
	PreventionMeasures       []PreventionMeasure      `json:"prevention_measures"`
	ExpertHelpIndicators     []string                 `json:"expert_help_indicators"`
	RecoveryTimeline         RecoveryTimeline         `json:"recovery_timeline"`
	AdditionalNotes          string                   `json:"additional_notes"`
}

// AsMap converts the document into the generic form the content codec stores.
func (d AdviceDocument) AsMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Advice is either a structured document or plain text.
type Advice struct {
	Document *AdviceDocument
	Text     string
	Source   string
}

type RecommendationStats struct {
	TotalAnalyses        int                          `json:"total_analyses"`
	TotalRecommendations int                          `json:"total_recommendations"`
	ByStatus             map[RecommendationStatus]int `json:"by_status"`
	ByGenerator          map[GeneratedBy]int          `json:"by_generator"`
	ConfidenceBuckets    ConfidenceBuckets            `json:"confidence_buckets"`
	TopCrops             []LabelCount                 `json:"top_crops"`
	TopDiseases          []LabelCount                 `json:"top_diseases"`
}

type ConfidenceBuckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
