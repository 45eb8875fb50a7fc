package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
)

const defaultTopN = 5

type StatsUseCase struct {
	repo     ports.StatsRepository
	exporter ports.StatsExporter
	topN     int
}

func NewStatsUseCase(repo ports.StatsRepository, exporter ports.StatsExporter, topN int) *StatsUseCase {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &StatsUseCase{repo: repo, exporter: exporter, topN: topN}
}

func (uc *StatsUseCase) Collect(ctx context.Context) (domain.RecommendationStats, error) {
	stats, err := uc.repo.CollectStats(ctx, uc.topN)
	if err != nil {
		return domain.RecommendationStats{}, fmt.Errorf("collect stats: %w", err)
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[domain.RecommendationStatus]int{}
	}
	for _, status := range []domain.RecommendationStatus{
		domain.RecommendationPending,
		domain.RecommendationApproved,
		domain.RecommendationRejected,
		domain.RecommendationResponded,
		domain.RecommendationClosed,
	} {
		if _, ok := stats.ByStatus[status]; !ok {
			stats.ByStatus[status] = 0
		}
	}
	if stats.ByGenerator == nil {
		stats.ByGenerator = map[domain.GeneratedBy]int{}
	}
	for _, by := range []domain.GeneratedBy{domain.GeneratedByAI, domain.GeneratedByHuman} {
		if _, ok := stats.ByGenerator[by]; !ok {
			stats.ByGenerator[by] = 0
		}
	}
	if stats.TopCrops == nil {
		stats.TopCrops = []domain.LabelCount{}
	}
	if stats.TopDiseases == nil {
		stats.TopDiseases = []domain.LabelCount{}
	}
	return stats, nil
}

func (uc *StatsUseCase) Export(ctx context.Context, w io.Writer) error {
	stats, err := uc.Collect(ctx)
	if err != nil {
		return err
	}
	if err := uc.exporter.WriteStats(w, stats); err != nil {
		return fmt.Errorf("export stats: %w", err)
	}
	return nil
}
