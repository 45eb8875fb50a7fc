package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type statsRepoFake struct {
	stats domain.RecommendationStats
	err   error
	topN  int
}

func (f *statsRepoFake) CollectStats(_ context.Context, topN int) (domain.RecommendationStats, error) {
	f.topN = topN
	return f.stats, f.err
}

type statsExporterFake struct {
	written domain.RecommendationStats
}

func (f *statsExporterFake) WriteStats(w io.Writer, stats domain.RecommendationStats) error {
	f.written = stats
	_, err := w.Write([]byte("xlsx"))
	return err
}

func TestStatsCollectFillsZeroes(t *testing.T) {
	repo := &statsRepoFake{stats: domain.RecommendationStats{
		TotalAnalyses: 4,
		ByStatus:      map[domain.RecommendationStatus]int{domain.RecommendationApproved: 2},
	}}
	uc := NewStatsUseCase(repo, &statsExporterFake{}, 0)

	stats, err := uc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if repo.topN != defaultTopN {
		t.Fatalf("expected default topN %d, got %d", defaultTopN, repo.topN)
	}
	if len(stats.ByStatus) != 5 || stats.ByStatus[domain.RecommendationApproved] != 2 {
		t.Fatalf("unexpected status counts %+v", stats.ByStatus)
	}
	if len(stats.ByGenerator) != 2 || stats.TopCrops == nil || stats.TopDiseases == nil {
		t.Fatalf("expected zero-filled stats, got %+v", stats)
	}
}

func TestStatsExport(t *testing.T) {
	exporter := &statsExporterFake{}
	uc := NewStatsUseCase(&statsRepoFake{stats: domain.RecommendationStats{TotalRecommendations: 3}}, exporter, 3)

	var buf bytes.Buffer
	if err := uc.Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if buf.String() != "xlsx" || exporter.written.TotalRecommendations != 3 {
		t.Fatalf("unexpected export output %q %+v", buf.String(), exporter.written)
	}

	failing := NewStatsUseCase(&statsRepoFake{err: errors.New("db down")}, exporter, 3)
	if err := failing.Export(context.Background(), &buf); err == nil {
		t.Fatalf("expected collect error")
	}
}
