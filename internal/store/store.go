// Package store persists evaluation history. Two backends implement the
// same interface: SQLite for single-machine use (the default) and Postgres
// for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ocrlab/ocreval/internal/config"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

// EvalFilter specifies criteria for listing evaluations. A Limit of 0
// returns the full history; callers wanting a bounded page set it explicitly.
type EvalFilter struct {
	Source model.EvalSource `json:"source,omitempty"`
	Engine string           `json:"engine,omitempty"`
	Tier   metrics.Tier     `json:"tier,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for evaluation history.
type Store interface {
	// Evaluations
	CreateEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvalFilter) ([]model.Evaluation, error)
	PurgeEvaluations(ctx context.Context, olderThan time.Duration) (int, error)

	// Comparison runs
	CreateComparison(ctx context.Context, run model.ComparisonRun) (*model.ComparisonRun, error)
	GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error)
	ListComparisons(ctx context.Context, limit int) ([]model.ComparisonRun, error)

	// Reporting
	Summarize(ctx context.Context) (*model.Summary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store from config.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
