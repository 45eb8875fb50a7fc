// Package xlsx renders admin statistics as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	summarySheet = "Summary"
	cropsSheet   = "Top Crops"
	diseaseSheet = "Top Diseases"
)

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) WriteStats(w io.Writer, stats domain.RecommendationStats) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Total analyses", stats.TotalAnalyses},
		{"Total recommendations", stats.TotalRecommendations},
		{"Confidence >= 0.8", stats.ConfidenceBuckets.High},
		{"Confidence 0.6-0.8", stats.ConfidenceBuckets.Medium},
		{"Confidence < 0.6", stats.ConfidenceBuckets.Low},
	}
	for _, status := range sortedKeys(stats.ByStatus) {
		rows = append(rows, []any{"Status: " + status, stats.ByStatus[domain.RecommendationStatus(status)]})
	}
	for _, by := range sortedKeys(stats.ByGenerator) {
		rows = append(rows, []any{"Generated by: " + by, stats.ByGenerator[domain.GeneratedBy(by)]})
	}
	if err := writeTable(f, summarySheet, rows, header); err != nil {
		return err
	}

	for _, table := range []struct {
		sheet  string
		title  string
		counts []domain.LabelCount
	}{
		{sheet: cropsSheet, title: "Crop", counts: stats.TopCrops},
		{sheet: diseaseSheet, title: "Disease", counts: stats.TopDiseases},
	} {
		if _, err := f.NewSheet(table.sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", table.sheet, err)
		}
		rows := [][]any{{table.title, "Analyses"}}
		for _, lc := range table.counts {
			rows = append(rows, []any{lc.Label, lc.Count})
		}
		if err := writeTable(f, table.sheet, rows, header); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 32); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return nil
}

func sortedKeys[K ~string](m map[K]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
