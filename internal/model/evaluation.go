package model

import (
	"time"

	"github.com/ocrlab/ocreval/internal/metrics"
)

// EvalSource describes how the predicted text in an evaluation was obtained.
type EvalSource string

const (
	SourceManual EvalSource = "manual" // predicted text supplied directly
	SourceEngine EvalSource = "engine" // produced by a configured OCR engine
	SourceBatch  EvalSource = "batch"  // part of a dataset batch run
)

// Evaluation is one persisted ground-truth / predicted comparison.
type Evaluation struct {
	ID          string         `json:"id"`
	Source      EvalSource     `json:"source"`
	Engine      string         `json:"engine,omitempty"`
	Label       string         `json:"label,omitempty"` // dataset item name or image path
	GroundTruth string         `json:"ground_truth"`
	Predicted   string         `json:"predicted"`
	Metrics     metrics.Result `json:"metrics"`
	Tier        metrics.Tier   `json:"tier"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ComparisonRun is one persisted multi-engine comparison: every configured
// engine's output ranked against a single ground truth.
type ComparisonRun struct {
	ID          string               `json:"id"`
	GroundTruth string               `json:"ground_truth"`
	Image       string               `json:"image,omitempty"`
	Entries     []metrics.Comparison `json:"entries"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Summary aggregates stored evaluations for reporting.
type Summary struct {
	Total                 int                  `json:"total"`
	MeanCharacterAccuracy float64              `json:"mean_character_accuracy"`
	MeanWordAccuracy      float64              `json:"mean_word_accuracy"`
	TierCounts            map[metrics.Tier]int `json:"tier_counts"`
}
