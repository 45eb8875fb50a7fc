package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type RecommendationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const recommendationColumns = `id, analysis_id, generated_by, content, status, created_at, updated_at`

func (r *RecommendationRepository) Create(ctx context.Context, rec *domain.Recommendation) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO recommendations (`+recommendationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, rec.ID, rec.AnalysisID, string(rec.GeneratedBy), rec.Content, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func (r *RecommendationRepository) GetByID(ctx context.Context, id string) (*domain.Recommendation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+`
FROM recommendations
WHERE id = $1
`, id)

	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recommendationNotFound("get recommendation", id)
		}
		return nil, fmt.Errorf("scan recommendation: %w", err)
	}
	return &rec, nil
}

func (r *RecommendationRepository) ListByAnalysis(ctx context.Context, analysisID string) ([]domain.Recommendation, error) {
	return r.query(ctx, `SELECT `+recommendationColumns+`
FROM recommendations
WHERE analysis_id = $1
ORDER BY created_at
`, analysisID)
}

func (r *RecommendationRepository) List(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.GeneratedBy != "" {
		conds = append(conds, "generated_by = "+arg(string(filter.GeneratedBy)))
	}

	query := "SELECT " + recommendationColumns + "\nFROM recommendations\n"
	if len(conds) > 0 {
		query += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	query += "ORDER BY created_at DESC\nLIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)
	return r.query(ctx, query, args...)
}

func (r *RecommendationRepository) HasGenerated(ctx context.Context, analysisID string, by domain.GeneratedBy) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM recommendations WHERE analysis_id = $1 AND generated_by = $2)
`, analysisID, string(by)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recommendation exists: %w", err)
	}
	return exists, nil
}

func (r *RecommendationRepository) UpdateStatus(ctx context.Context, id string, status domain.RecommendationStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE recommendations
SET status = $2, updated_at = $3
WHERE id = $1
`, id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	return expectAffected(result, "update recommendation status", id)
}

// AppendContent concatenates in SQL so concurrent appends never drop text.
// An empty status keeps the current one.
func (r *RecommendationRepository) AppendContent(ctx context.Context, id, suffix string, status domain.RecommendationStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE recommendations
SET content = content || $2, status = COALESCE(NULLIF($3, ''), status), updated_at = $4
WHERE id = $1
`, id, suffix, string(status), r.now())
	if err != nil {
		return fmt.Errorf("append recommendation content: %w", err)
	}
	return expectAffected(result, "append recommendation content", id)
}

func (r *RecommendationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recommendations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recommendation: %w", err)
	}
	return expectAffected(result, "delete recommendation", id)
}

func (r *RecommendationRepository) query(ctx context.Context, query string, args ...any) ([]domain.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return out, nil
}

func scanRecommendation(row rowScanner) (domain.Recommendation, error) {
	var rec domain.Recommendation
	var by, status string
	if err := row.Scan(&rec.ID, &rec.AnalysisID, &by, &rec.Content, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.Recommendation{}, err
	}
	rec.GeneratedBy = domain.GeneratedBy(by)
	rec.Status = domain.RecommendationStatus(status)
	return rec, nil
}

func expectAffected(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return recommendationNotFound(op, id)
	}
	return nil
}

func recommendationNotFound(op, id string) error {
	return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("recommendation %s", id))
}
