package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	engine        TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL DEFAULT '',
	ground_truth  TEXT NOT NULL,
	predicted     TEXT NOT NULL,
	metrics       TEXT NOT NULL,
	char_accuracy REAL NOT NULL,
	word_accuracy REAL NOT NULL,
	tier          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comparison_runs (
	id           TEXT PRIMARY KEY,
	ground_truth TEXT NOT NULL,
	image        TEXT NOT NULL DEFAULT '',
	entries      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evaluations_source ON evaluations(source);
CREATE INDEX IF NOT EXISTS idx_evaluations_engine ON evaluations(engine);
CREATE INDEX IF NOT EXISTS idx_evaluations_tier ON evaluations(tier);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
CREATE INDEX IF NOT EXISTS idx_comparison_runs_created_at ON comparison_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error) {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()

	metricsJSON, err := json.Marshal(ev.Metrics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations
			(id, source, engine, label, ground_truth, predicted, metrics, char_accuracy, word_accuracy, tier, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Source), ev.Engine, ev.Label, ev.GroundTruth, ev.Predicted,
		string(metricsJSON), ev.Metrics.CharacterAccuracy, ev.Metrics.WordAccuracy,
		string(ev.Tier), ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert evaluation")
	}

	return &ev, nil
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at
		 FROM evaluations WHERE id = ?`, id)
	return scanEvaluation(row)
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter EvalFilter) ([]model.Evaluation, error) {
	query := `SELECT id, source, engine, label, ground_truth, predicted, metrics, tier, created_at
		 FROM evaluations`
	var conds []string
	var args []any
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Engine != "" {
		conds = append(conds, "engine = ?")
		args = append(args, filter.Engine)
	}
	if filter.Tier != "" {
		conds = append(conds, "tier = ?")
		args = append(args, string(filter.Tier))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	// Limit 0 means unbounded; SQLite needs LIMIT -1 to pair an OFFSET
	// with no limit.
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close() //nolint:errcheck

	var evals []model.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *ev)
	}
	return evals, eris.Wrap(rows.Err(), "sqlite: iterate evaluations")
}

func (s *SQLiteStore) PurgeEvaluations(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge evaluations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) CreateComparison(ctx context.Context, run model.ComparisonRun) (*model.ComparisonRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	entriesJSON, err := json.Marshal(run.Entries)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal comparison entries")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparison_runs (id, ground_truth, image, entries, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.GroundTruth, run.Image, string(entriesJSON), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert comparison run")
	}

	return &run, nil
}

func (s *SQLiteStore) GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ground_truth, image, entries, created_at FROM comparison_runs WHERE id = ?`, id)
	return scanComparison(row)
}

func (s *SQLiteStore) ListComparisons(ctx context.Context, limit int) ([]model.ComparisonRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ground_truth, image, entries, created_at
		 FROM comparison_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparison runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ComparisonRun
	for rows.Next() {
		run, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate comparison runs")
}

func (s *SQLiteStore) Summarize(ctx context.Context) (*model.Summary, error) {
	summary := &model.Summary{TierCounts: make(map[metrics.Tier]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(char_accuracy), 0), COALESCE(AVG(word_accuracy), 0) FROM evaluations`)
	if err := row.Scan(&summary.Total, &summary.MeanCharacterAccuracy, &summary.MeanWordAccuracy); err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tier, COUNT(*) FROM evaluations GROUP BY tier`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize tiers")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tier count")
		}
		summary.TierCounts[metrics.Tier(tier)] = count
	}
	return summary, eris.Wrap(rows.Err(), "sqlite: iterate tier counts")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*model.Evaluation, error) {
	var ev model.Evaluation
	var source, tier, metricsJSON string
	if err := row.Scan(&ev.ID, &source, &ev.Engine, &ev.Label, &ev.GroundTruth, &ev.Predicted,
		&metricsJSON, &tier, &ev.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: evaluation not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan evaluation")
	}
	ev.Source = model.EvalSource(source)
	ev.Tier = metrics.Tier(tier)
	if err := json.Unmarshal([]byte(metricsJSON), &ev.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	return &ev, nil
}

func scanComparison(row rowScanner) (*model.ComparisonRun, error) {
	var run model.ComparisonRun
	var entriesJSON string
	if err := row.Scan(&run.ID, &run.GroundTruth, &run.Image, &entriesJSON, &run.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: comparison run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan comparison run")
	}
	if err := json.Unmarshal([]byte(entriesJSON), &run.Entries); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal comparison entries")
	}
	return &run, nil
}
