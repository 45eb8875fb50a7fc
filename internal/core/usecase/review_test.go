package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/content"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

func seedRecommendation(repo *recRepoFake, rec domain.Recommendation) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = domain.RecommendationPending
	}
	_ = repo.Create(context.Background(), &rec)
}

func TestReviewAppendsAdminComment(t *testing.T) {
	repo := newRecRepoFake()
	original := content.Encode("Late Blight detected.", map[string]any{"severity_level": "medium"})
	seedRecommendation(repo, domain.Recommendation{ID: "r-1", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByAI, Content: original})
	uc := NewReviewUseCase(repo)

	rec, err := uc.Review(context.Background(), "r-1", domain.RecommendationApproved, "  Confirmed in the field.  ")
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if rec.Status != domain.RecommendationApproved {
		t.Fatalf("expected approved, got %s", rec.Status)
	}
	if !strings.HasPrefix(rec.Content, original) {
		t.Fatalf("expected original content preserved, got %q", rec.Content)
	}

	doc := content.Decode(rec.Content)
	comment, ok := doc.LastAnnotation(content.AdminCommentLabel)
	if !ok || comment.Body != "Confirmed in the field." {
		t.Fatalf("unexpected admin comment %q (found=%v)", comment.Body, ok)
	}
	if doc.Structured["severity_level"] != "medium" {
		t.Fatalf("structured data lost: %#v", doc.Structured)
	}
}

func TestReviewWithoutCommentOnlyChangesStatus(t *testing.T) {
	repo := newRecRepoFake()
	seedRecommendation(repo, domain.Recommendation{ID: "r-1", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByAI, Content: "advice"})
	uc := NewReviewUseCase(repo)

	rec, err := uc.Review(context.Background(), "r-1", domain.RecommendationRejected, "")
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if rec.Status != domain.RecommendationRejected || rec.Content != "advice" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
}

func TestReviewRejectsInvalidStatus(t *testing.T) {
	repo := newRecRepoFake()
	seedRecommendation(repo, domain.Recommendation{ID: "r-1", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByAI, Content: "advice"})
	uc := NewReviewUseCase(repo)

	for _, status := range []domain.RecommendationStatus{domain.RecommendationPending, domain.RecommendationClosed, "bogus"} {
		if _, err := uc.Review(context.Background(), "r-1", status, ""); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("status %q: expected ErrInvalidInput, got %v", status, err)
		}
	}
	if _, err := uc.Review(context.Background(), "missing", domain.RecommendationApproved, ""); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpinionLifecycle(t *testing.T) {
	repo := newRecRepoFake()
	seedRecommendation(repo, domain.Recommendation{
		ID:          "op-1",
		AnalysisID:  "a-1",
		GeneratedBy: domain.GeneratedByHuman,
		Content:     content.EncodeOpinionRequest("Is copper safe before harvest?"),
	})
	uc := NewReviewUseCase(repo)

	rec, err := uc.Respond(context.Background(), "op-1", "Wait 7 days after spraying.")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if rec.Status != domain.RecommendationResponded {
		t.Fatalf("expected responded, got %s", rec.Status)
	}
	opinion := content.DecodeOpinion(rec.Content)
	if opinion.Question != "Is copper safe before harvest?" || !opinion.Responded || opinion.ExpertResponse != "Wait 7 days after spraying." {
		t.Fatalf("unexpected opinion %+v", opinion)
	}

	rec, err = uc.SetOpinionStatus(context.Background(), "op-1", domain.RecommendationClosed)
	if err != nil {
		t.Fatalf("SetOpinionStatus returned error: %v", err)
	}
	if rec.Status != domain.RecommendationClosed {
		t.Fatalf("expected closed, got %s", rec.Status)
	}

	if _, err := uc.SetOpinionStatus(context.Background(), "op-1", domain.RecommendationApproved); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for review verdict, got %v", err)
	}
	if _, err := uc.Respond(context.Background(), "op-1", "   "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank response, got %v", err)
	}
}

func TestRespondRequiresOpinionRequest(t *testing.T) {
	repo := newRecRepoFake()
	seedRecommendation(repo, domain.Recommendation{ID: "r-1", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByAI, Content: "advice"})
	uc := NewReviewUseCase(repo)

	if _, err := uc.Respond(context.Background(), "r-1", "answer"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReviewListAndDelete(t *testing.T) {
	repo := newRecRepoFake()
	seedRecommendation(repo, domain.Recommendation{ID: "r-1", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByAI, Content: "one"})
	seedRecommendation(repo, domain.Recommendation{ID: "r-2", AnalysisID: "a-1", GeneratedBy: domain.GeneratedByHuman, Content: content.EncodeOpinionRequest("q")})
	uc := NewReviewUseCase(repo)

	items, err := uc.List(context.Background(), domain.RecommendationFilter{GeneratedBy: domain.GeneratedByHuman, Limit: 1000})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "r-2" {
		t.Fatalf("unexpected filtered list %+v", items)
	}

	if err := uc.Delete(context.Background(), "r-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := uc.Delete(context.Background(), "r-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
