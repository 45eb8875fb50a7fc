package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create stores the analysis and all of its image results in one transaction.
func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analysis tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO analyses (
	id, owner_id, crop_type, primary_disease, average_confidence, average_severity, location, classifier, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		analysis.ID, analysis.OwnerID, analysis.CropType, analysis.PrimaryDisease, analysis.AverageConfidence,
		string(analysis.AverageSeverity), analysis.Location, analysis.Classifier, string(analysis.Status), analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	for i := range analysis.Results {
		res := &analysis.Results[i]
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		res.AnalysisID = analysis.ID
		if res.CreatedAt.IsZero() {
			res.CreatedAt = analysis.CreatedAt
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO image_results (
	id, analysis_id, position, image_ref, storage_path, crop_type, disease, confidence, severity, error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
			res.ID, res.AnalysisID, res.Position, res.ImageRef, res.StoragePath, res.CropType, res.Disease,
			res.Confidence, string(res.Severity), res.Error, res.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert image result %d: %w", res.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis tx: %w", err)
	}
	return nil
}

const analysisColumns = `id, owner_id, crop_type, primary_disease, average_confidence, average_severity, location, classifier, status, created_at`

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+`
FROM analyses
WHERE id = $1
`, id)

	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("analysis %s", id))
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	results, err := r.listResults(ctx, id)
	if err != nil {
		return nil, err
	}
	analysis.Results = results
	return &analysis, nil
}

// List returns analyses newest first without their image results.
func (r *AnalysisRepository) List(ctx context.Context, filter domain.AnalysisFilter) ([]domain.Analysis, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = "+arg(filter.OwnerID))
	}
	if filter.CropType != "" {
		conds = append(conds, "crop_type ILIKE "+arg(filter.CropType))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + escapeLike(search) + "%")
		conds = append(conds, "(crop_type ILIKE "+p+" OR primary_disease ILIKE "+p+" OR location ILIKE "+p+")")
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= "+arg(*filter.To))
	}

	query := "SELECT " + analysisColumns + "\nFROM analyses\n"
	if len(conds) > 0 {
		query += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	query += "ORDER BY created_at DESC\nLIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (r *AnalysisRepository) listResults(ctx context.Context, analysisID string) ([]domain.ImageResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, analysis_id, position, image_ref, storage_path, crop_type, disease, confidence, severity, error_message, created_at
FROM image_results
WHERE analysis_id = $1
ORDER BY position
`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list image results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ImageResult, 0)
	for rows.Next() {
		var res domain.ImageResult
		var severity string
		if err := rows.Scan(
			&res.ID, &res.AnalysisID, &res.Position, &res.ImageRef, &res.StoragePath, &res.CropType,
			&res.Disease, &res.Confidence, &severity, &res.Error, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image result: %w", err)
		}
		res.Severity = domain.Severity(severity)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image results: %w", err)
	}
	return out, nil
}

func scanAnalysis(row rowScanner) (domain.Analysis, error) {
	var a domain.Analysis
	var severity, status string
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.CropType,
		&a.PrimaryDisease,
		&a.AverageConfidence,
		&severity,
		&a.Location,
		&a.Classifier,
		&status,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Analysis{}, err
	}
	a.AverageSeverity = domain.Severity(severity)
	a.Status = domain.AnalysisStatus(status)
	return a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
