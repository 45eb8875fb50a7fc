package domain

import (
	"io"
	"strings"
	"time"
)

type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityInvalid Severity = "invalid"
)

const (
	UnknownCrop         = "Unknown"
	ErrorDisease        = "Error"
	NotAPlantDisease    = "Not a plant image"
	NotAPlantUserNotice = "This does not appear to be a plant or crop image. Please upload images of plant leaves or crops."
)

// PerImageResult is one classifier verdict for one image.
type PerImageResult struct {
	ImageRef   string   `json:"image_ref"`
	CropType   string   `json:"crop_type"`
	Disease    string   `json:"disease"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
	Error      string   `json:"error,omitempty"`
}

func (r PerImageResult) IsInvalid() bool {
	return r.Severity == SeverityInvalid
}

func (r PerImageResult) IsErrored() bool {
	return r.Disease == ErrorDisease
}

func (r PerImageResult) IsValid() bool {
	return !r.IsInvalid() && !r.IsErrored()
}

// AnalysisResult is the consensus over one batch of images.
type AnalysisResult struct {
	CropType          string           `json:"crop_type"`
	PrimaryDisease    string           `json:"primary_disease"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageSeverity   Severity         `json:"average_severity"`
	PerImage          []PerImageResult `json:"per_image"`
}

// ImageInput is a single image handed to the inference adapter.
type ImageInput struct {
	Ref  string
	Data []byte
}

// UploadedImage is an image as received from the transport layer.
type UploadedImage struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

type Analysis struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"owner_id"`
	CropType          string         `json:"crop_type"`
	PrimaryDisease    string         `json:"primary_disease"`
	AverageConfidence float64        `json:"average_confidence"`
	AverageSeverity   Severity       `json:"average_severity"`
	Location          string         `json:"location,omitempty"`
	Classifier        string         `json:"classifier"`
	Status            AnalysisStatus `json:"status"`
	Results           []ImageResult  `json:"results"`
	CreatedAt         time.Time      `json:"created_at"`
}

type ImageResult struct {
	ID          string    `json:"id"`
	AnalysisID  string    `json:"analysis_id"`
	Position    int       `json:"position"`
	ImageRef    string    `json:"image_ref"`
	StoragePath string    `json:"storage_path"`
	CropType    string    `json:"crop_type"`
	Disease     string    `json:"disease"`
	Confidence  float64   `json:"confidence"`
	Severity    Severity  `json:"severity"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r ImageResult) Verdict() PerImageResult {
	return PerImageResult{
		ImageRef:   r.ImageRef,
		CropType:   r.CropType,
		Disease:    r.Disease,
		Confidence: r.Confidence,
		Severity:   r.Severity,
		Error:      r.Error,
	}
}

type AnalysisFilter struct {
	OwnerID  string
	CropType string
	Search   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

func IsHealthyLabel(label string) bool {
	return containsFold(label, "healthy")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ImageTensor is a preprocessed image in NHWC layout with a batch size of one.
type ImageTensor struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

type SubmitRequest struct {
	OwnerID      string
	Images       []UploadedImage
	CropOverride string
	Location     string
}
