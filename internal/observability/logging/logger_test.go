package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, Options{Service: "crop-api", Level: "warn"})

	logger.Info("dropped")
	logger.Warn("image_rejected", "rule", "high_entropy")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if record["service"] != "crop-api" || record["msg"] != "image_rejected" || record["rule"] != "high_entropy" {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, ok := record["source"]; ok {
		t.Fatalf("source must be omitted unless requested")
	}
}

func TestTextLoggerWithSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, Options{Service: "worker", Format: "TEXT", AddSource: true})

	logger.Info("recommendation_generated", "analysis_id", "a-1")

	line := buf.String()
	for _, want := range []string{"msg=recommendation_generated", "service=worker", "analysis_id=a-1", "source=", "logger_test.go"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		" WARNING": slog.LevelWarn,
		"warn":     slog.LevelWarn,
		"error":    slog.LevelError,
		"":         slog.LevelInfo,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
