package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CollectStats(ctx context.Context, topN int) (domain.RecommendationStats, error) {
	stats := domain.RecommendationStats{
		ByStatus:    map[domain.RecommendationStatus]int{},
		ByGenerator: map[domain.GeneratedBy]int{},
	}

	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE average_confidence >= 0.8),
	COUNT(*) FILTER (WHERE average_confidence >= 0.6 AND average_confidence < 0.8),
	COUNT(*) FILTER (WHERE average_confidence < 0.6)
FROM analyses
`).Scan(&stats.TotalAnalyses, &stats.ConfidenceBuckets.High, &stats.ConfidenceBuckets.Medium, &stats.ConfidenceBuckets.Low)
	if err != nil {
		return domain.RecommendationStats{}, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT status, generated_by, COUNT(*)
FROM recommendations
GROUP BY status, generated_by
`)
	if err != nil {
		return domain.RecommendationStats{}, fmt.Errorf("count recommendations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, by string
		var n int
		if err := rows.Scan(&status, &by, &n); err != nil {
			return domain.RecommendationStats{}, fmt.Errorf("scan recommendation counts: %w", err)
		}
		stats.ByStatus[domain.RecommendationStatus(status)] += n
		stats.ByGenerator[domain.GeneratedBy(by)] += n
		stats.TotalRecommendations += n
	}
	if err := rows.Err(); err != nil {
		return domain.RecommendationStats{}, fmt.Errorf("iterate recommendation counts: %w", err)
	}

	if stats.TopCrops, err = r.topLabels(ctx, "crop_type", topN); err != nil {
		return domain.RecommendationStats{}, err
	}
	if stats.TopDiseases, err = r.topLabels(ctx, "primary_disease", topN); err != nil {
		return domain.RecommendationStats{}, err
	}
	return stats, nil
}

// column is one of a fixed set of identifiers, never user input.
func (r *StatsRepository) topLabels(ctx context.Context, column string, topN int) ([]domain.LabelCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+column+`, COUNT(*) AS n
FROM analyses
GROUP BY `+column+`
ORDER BY n DESC, `+column+`
LIMIT $1
`, topN)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]domain.LabelCount, 0, topN)
	for rows.Next() {
		var lc domain.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan top %s: %w", column, err)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top %s: %w", column, err)
	}
	return out, nil
}
