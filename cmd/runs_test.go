//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

func TestFormatEvalList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	m := metrics.Detailed("Hello World", "Helo World")
	evals := []model.Evaluation{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Source:    model.SourceManual,
			Label:     "page1",
			Metrics:   m,
			Tier:      metrics.TierGood,
			CreatedAt: now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    model.SourceEngine,
			Engine:    "tesseract",
			Label:     "a-very-long-label-that-keeps-going-and-going",
			Metrics:   metrics.Detailed("x", "x"),
			Tier:      metrics.TierExcellent,
			CreatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatEvalList(&buf, evals)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "manual")
	assert.Contains(t, output, "90.91%")
	assert.Contains(t, output, "good")
	assert.Contains(t, output, "tesseract")
	assert.Contains(t, output, "2026-03-15 10:30")

	// Long labels are truncated for display.
	assert.Contains(t, output, "a-very-long-label-that-keep...")
	assert.NotContains(t, output, "going-and-going")
}

func TestFormatEvalList_MultibyteLabelTruncation(t *testing.T) {
	evals := []model.Evaluation{
		{
			ID:      "abc12345-6789-0000-0000-000000000000",
			Source:  model.SourceManual,
			Label:   strings.Repeat("é", 35),
			Metrics: metrics.Detailed("x", "x"),
			Tier:    metrics.TierExcellent,
		},
	}

	var buf bytes.Buffer
	formatEvalList(&buf, evals)

	// Truncation counts runes, never splitting a multibyte character.
	output := buf.String()
	assert.Contains(t, output, strings.Repeat("é", 27)+"...")
	assert.NotContains(t, output, "�")
	assert.True(t, utf8.ValidString(output))
}

func TestFormatComparisonList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	entries := metrics.CompareEngines("cat", []metrics.EngineResult{
		{Engine: "best", Text: "cat", Success: true},
		{Engine: "worst", Success: false, Error: "boom"},
	})
	runs := []model.ComparisonRun{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Image:     "scan.png",
			Entries:   entries,
			CreatedAt: now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			CreatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatComparisonList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "scan.png")
	assert.Contains(t, output, "best (100.00%)")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "def12345")
}

func TestFormatSummary(t *testing.T) {
	summary := &model.Summary{
		Total:                 3,
		MeanCharacterAccuracy: 88.5,
		MeanWordAccuracy:      72.0,
		TierCounts: map[metrics.Tier]int{
			metrics.TierExcellent: 2,
			metrics.TierBad:       1,
		},
	}

	var buf bytes.Buffer
	formatSummary(&buf, summary)

	output := buf.String()
	assert.Contains(t, output, "Total evaluations:")
	assert.Contains(t, output, "3")
	assert.Contains(t, output, "88.50%")
	assert.Contains(t, output, "72.00%")
	assert.Contains(t, output, "excellent:")
	assert.Contains(t, output, "bad:")
	assert.NotContains(t, output, "fair:")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
