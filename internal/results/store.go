package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/postgres"
)

// ErrRunNotFound is returned by LatestRun when no run matches.
var ErrRunNotFound = errors.New("results: run not found")

const maxListRuns = 1000

// Schema creates the table Store writes to.
const Schema = `CREATE TABLE IF NOT EXISTS rank_runs (
    id           BIGSERIAL PRIMARY KEY,
    input_digest TEXT NOT NULL,
    source       TEXT NOT NULL,
    iterations   INTEGER NOT NULL,
    beta         DOUBLE PRECISION NOT NULL,
    vertices     INTEGER NOT NULL,
    edges        INTEGER NOT NULL,
    top          JSONB NOT NULL,
    duration_ms  BIGINT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rank_runs_digest_idx ON rank_runs (input_digest, iterations, created_at DESC);`

// Run is one finished ranking as recorded in rank_runs.
type Run struct {
	ID         int64         `json:"id"`
	Digest     string        `json:"digest"`
	Source     string        `json:"source"`
	Iterations int           `json:"iterations"`
	Beta       float64       `json:"beta"`
	Vertices   int           `json:"vertices"`
	Edges      int           `json:"edges"`
	Top        []rank.Ranked `json:"top"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Store persists run history in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-store"),
	}
}

// Migrate creates the rank_runs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrating rank_runs: %w", err)
	}
	return nil
}

// SaveRun inserts run and fills in its ID and CreatedAt.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	top, err := json.Marshal(run.Top)
	if err != nil {
		return fmt.Errorf("marshaling top vertices: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO rank_runs (input_digest, source, iterations, beta, vertices, edges, top, duration_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at`,
			run.Digest, run.Source, run.Iterations, run.Beta, run.Vertices, run.Edges, top, run.Duration.Milliseconds(),
		).Scan(&run.ID, &run.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	s.logger.Info("run saved", "id", run.ID, "digest", run.Digest, "iterations", run.Iterations)
	return nil
}

const runColumns = `id, input_digest, source, iterations, beta, vertices, edges, top, duration_ms, created_at`

// LatestRun returns the most recent run of the given input and iteration
// count, or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context, digest string, iterations int) (*Run, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM rank_runs
		 WHERE input_digest = $1 AND iterations = $2
		 ORDER BY created_at DESC LIMIT 1`,
		digest, iterations,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns the last limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > maxListRuns {
		limit = maxListRuns
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM rank_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable run", "error", err)
			continue
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		top        []byte
		durationMS int64
	)
	err := row.Scan(&run.ID, &run.Digest, &run.Source, &run.Iterations, &run.Beta,
		&run.Vertices, &run.Edges, &top, &durationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(top, &run.Top); err != nil {
		return nil, fmt.Errorf("decoding top vertices of run %d: %w", run.ID, err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
