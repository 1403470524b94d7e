package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunRepository records runs in ingest_runs. The primary key on run_id makes
// Begin an atomic accept-or-reject across processes.
type RunRepository struct {
	db DB
}

// NewRunRepository returns a repository backed by db.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Begin implements core.RunRepository.
func (r *RunRepository) Begin(ctx context.Context, runID string, startedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO ingest_runs (run_id, status, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING`,
		runID, string(core.StatusRunning), startedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrDuplicateRun
	}
	return nil
}

// Finish implements core.RunRepository.
func (r *RunRepository) Finish(ctx context.Context, res core.RunResult) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ingest_runs SET
			status            = $2,
			chunks_committed  = $3,
			records_committed = $4,
			records_read      = $5,
			rows_degraded     = $6,
			tokens_degraded   = $7,
			bytes_read        = $8,
			error             = $9,
			finished_at       = $10
		WHERE run_id = $1`,
		res.RunID, string(res.Status), res.ChunksCommitted, res.RecordsCommitted,
		res.RecordsRead, res.RowsDegraded, res.TokensDegraded, res.BytesRead,
		pgtype.Text{String: res.Error, Valid: res.Error != ""},
		pgtype.Timestamptz{Time: res.FinishedAt, Valid: !res.FinishedAt.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", res.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, res.RunID)
	}
	return nil
}

const selectRunSQL = `
	SELECT run_id, status, chunks_committed, records_committed, records_read,
	       rows_degraded, tokens_degraded, bytes_read, error, started_at, finished_at
	FROM ingest_runs`

// Get implements core.RunRepository.
func (r *RunRepository) Get(ctx context.Context, runID string) (core.RunResult, error) {
	res, err := scanRun(r.db.QueryRow(ctx, selectRunSQL+" WHERE run_id = $1", runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.RunResult{}, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	if err != nil {
		return core.RunResult{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return res, nil
}

// List implements core.RunRepository.
func (r *RunRepository) List(ctx context.Context, limit int) ([]core.RunResult, error) {
	rows, err := r.db.Query(ctx, selectRunSQL+" ORDER BY started_at DESC LIMIT $1", core.ClampRunListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.RunResult, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (core.RunResult, error) {
	var (
		res        core.RunResult
		status     string
		errText    pgtype.Text
		finishedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&res.RunID, &status, &res.ChunksCommitted, &res.RecordsCommitted, &res.RecordsRead,
		&res.RowsDegraded, &res.TokensDegraded, &res.BytesRead, &errText, &res.StartedAt, &finishedAt,
	)
	if err != nil {
		return core.RunResult{}, err
	}

	res.Status = core.RunStatus(status)
	if err := core.CheckStoredStatus(res.RunID, res.Status); err != nil {
		return core.RunResult{}, err
	}
	if errText.Valid {
		res.Error = errText.String
	}
	if finishedAt.Valid {
		res.FinishedAt = finishedAt.Time
	}
	return res, nil
}

// Truncate forgets every recorded run, which makes old run ids reusable.
func (r *RunRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "TRUNCATE ingest_runs"); err != nil {
		return fmt.Errorf("truncate runs: %w", err)
	}
	return nil
}
