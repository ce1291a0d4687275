package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	engine        TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL DEFAULT '',
	ground_truth  TEXT NOT NULL,
	predicted     TEXT NOT NULL,
	metrics       JSONB NOT NULL,
	char_accuracy DOUBLE PRECISION NOT NULL,
	word_accuracy DOUBLE PRECISION NOT NULL,
	tier          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comparison_runs (
	id           TEXT PRIMARY KEY,
	ground_truth TEXT NOT NULL,
	image        TEXT NOT NULL DEFAULT '',
	entries      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_source ON evaluations(source);
CREATE INDEX IF NOT EXISTS idx_evaluations_engine ON evaluations(engine);
CREATE INDEX IF NOT EXISTS idx_evaluations_tier ON evaluations(tier);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
CREATE INDEX IF NOT EXISTS idx_comparison_runs_created_at ON comparison_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error) {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()

	metricsJSON, err := json.Marshal(ev.Metrics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations
			(id, source, engine, label, ground_truth, predicted, metrics, char_accuracy, word_accuracy, tier, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, string(ev.Source), ev.Engine, ev.Label, ev.GroundTruth, ev.Predicted,
		metricsJSON, ev.Metrics.CharacterAccuracy, ev.Metrics.WordAccuracy,
		string(ev.Tier), ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert evaluation")
	}

	return &ev, nil
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at
		 FROM evaluations WHERE id = $1`, id)
	ev, err := scanPgEvaluation(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}
	return ev, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvalFilter) ([]model.Evaluation, error) {
	query := `SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at
		 FROM evaluations`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Source != "" {
		conds = append(conds, "source = "+arg(string(filter.Source)))
	}
	if filter.Engine != "" {
		conds = append(conds, "engine = "+arg(filter.Engine))
	}
	if filter.Tier != "" {
		conds = append(conds, "tier = "+arg(string(filter.Tier)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var evals []model.Evaluation
	for rows.Next() {
		ev, err := scanPgEvaluation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		evals = append(evals, *ev)
	}
	return evals, eris.Wrap(rows.Err(), "postgres: iterate evaluations")
}

func (s *PostgresStore) PurgeEvaluations(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM evaluations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge evaluations")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateComparison(ctx context.Context, run model.ComparisonRun) (*model.ComparisonRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	entriesJSON, err := json.Marshal(run.Entries)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal comparison entries")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparison_runs (id, ground_truth, image, entries, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.GroundTruth, run.Image, entriesJSON, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert comparison run")
	}

	return &run, nil
}

func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, ground_truth, image, entries, created_at FROM comparison_runs WHERE id = $1`, id)
	run, err := scanPgComparison(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comparison run %s", id)
	}
	return run, nil
}

func (s *PostgresStore) ListComparisons(ctx context.Context, limit int) ([]model.ComparisonRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ground_truth, image, entries, created_at
		 FROM comparison_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparison runs")
	}
	defer rows.Close()

	var runs []model.ComparisonRun
	for rows.Next() {
		run, err := scanPgComparison(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate comparison runs")
}

func (s *PostgresStore) Summarize(ctx context.Context) (*model.Summary, error) {
	summary := &model.Summary{TierCounts: make(map[metrics.Tier]int)}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(char_accuracy), 0), COALESCE(AVG(word_accuracy), 0) FROM evaluations`)
	if err := row.Scan(&summary.Total, &summary.MeanCharacterAccuracy, &summary.MeanWordAccuracy); err != nil {
		return nil, eris.Wrap(err, "postgres: summarize")
	}

	rows, err := s.pool.Query(ctx, `SELECT tier, COUNT(*) FROM evaluations GROUP BY tier`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize tiers")
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tier count")
		}
		summary.TierCounts[metrics.Tier(tier)] = count
	}
	return summary, eris.Wrap(rows.Err(), "postgres: iterate tier counts")
}

func scanPgEvaluation(row pgx.Row) (*model.Evaluation, error) {
	var ev model.Evaluation
	var source, tier string
	var metricsJSON []byte
	if err := row.Scan(&ev.ID, &source, &ev.Engine, &ev.Label, &ev.GroundTruth, &ev.Predicted,
		&metricsJSON, &tier, &ev.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "evaluation not found")
		}
		return nil, err
	}
	ev.Source = model.EvalSource(source)
	ev.Tier = metrics.Tier(tier)
	if err := json.Unmarshal(metricsJSON, &ev.Metrics); err != nil {
		return nil, eris.Wrap(err, "unmarshal metrics")
	}
	return &ev, nil
}

func scanPgComparison(row pgx.Row) (*model.ComparisonRun, error) {
	var run model.ComparisonRun
	var entriesJSON []byte
	if err := row.Scan(&run.ID, &run.GroundTruth, &run.Image, &entriesJSON, &run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "comparison run not found")
		}
		return nil, err
	}
	if err := json.Unmarshal(entriesJSON, &run.Entries); err != nil {
		return nil, eris.Wrap(err, "unmarshal comparison entries")
	}
	return &run, nil
}
