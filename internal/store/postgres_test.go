package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateEvaluation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO evaluations`).
		WithArgs(pgxmock.AnyArg(), "manual", "", "", "Hello World", "Helo World",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "good", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.CreateEvaluation(context.Background(), testEvaluation("Hello World", "Helo World"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEvaluation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	m := metrics.Detailed("abc", "abc")
	metricsJSON, err := json.Marshal(m)
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at FROM evaluations WHERE id = \$1`).
		WithArgs("eval-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source", "engine", "label", "ground_truth", "predicted", "metrics", "tier", "created_at",
		}).AddRow("eval-1", "manual", "", "", "abc", "abc", metricsJSON, "excellent", now))

	got, err := s.GetEvaluation(context.Background(), "eval-1")
	require.NoError(t, err)
	assert.Equal(t, "eval-1", got.ID)
	assert.Equal(t, metrics.TierExcellent, got.Tier)
	assert.Equal(t, 100.0, got.Metrics.CharacterAccuracy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEvaluation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at FROM evaluations WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetEvaluation(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeEvaluations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM evaluations WHERE created_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.PurgeEvaluations(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateComparison(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO comparison_runs`).
		WithArgs(pgxmock.AnyArg(), "cat", "scan.png", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entries := metrics.CompareEngines("cat", []metrics.EngineResult{
		{Engine: "A", Text: "cat", Success: true},
	})
	created, err := s.CreateComparison(context.Background(), model.ComparisonRun{
		GroundTruth: "cat",
		Image:       "scan.png",
		Entries:     entries,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summarize(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(AVG\(char_accuracy\), 0\), COALESCE\(AVG\(word_accuracy\), 0\) FROM evaluations`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "char", "word"}).AddRow(3, 88.5, 72.0))

	mock.ExpectQuery(`SELECT tier, COUNT\(\*\) FROM evaluations GROUP BY tier`).
		WillReturnRows(pgxmock.NewRows([]string{"tier", "count"}).
			AddRow("excellent", 2).
			AddRow("bad", 1))

	summary, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.InDelta(t, 88.5, summary.MeanCharacterAccuracy, 0.001)
	assert.Equal(t, 2, summary.TierCounts[metrics.TierExcellent])
	assert.Equal(t, 1, summary.TierCounts[metrics.TierBad])
	assert.NoError(t, mock.ExpectationsWereMet())
}
