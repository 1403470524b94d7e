package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/go-sql-driver/mysql"
)

// erDupEntry is MySQL's duplicate-key error number.
const erDupEntry = 1062

// RunRepository records runs in ingest_runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository returns a repository backed by db.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Begin implements core.RunRepository. The primary key rejects reused ids.
func (r *RunRepository) Begin(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO ingest_runs (run_id, status, started_at) VALUES (?, ?, ?)",
		runID, string(core.StatusRunning), startedAt.UTC(),
	)
	if isDuplicateEntry(err) {
		return core.ErrDuplicateRun
	}
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish implements core.RunRepository.
func (r *RunRepository) Finish(ctx context.Context, res core.RunResult) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE ingest_runs SET
			status = ?, chunks_committed = ?, records_committed = ?, records_read = ?,
			rows_degraded = ?, tokens_degraded = ?, bytes_read = ?, error = ?, finished_at = ?
		WHERE run_id = ?`,
		string(res.Status), res.ChunksCommitted, res.RecordsCommitted, res.RecordsRead,
		res.RowsDegraded, res.TokensDegraded, res.BytesRead,
		sql.NullString{String: res.Error, Valid: res.Error != ""},
		sql.NullTime{Time: res.FinishedAt.UTC(), Valid: !res.FinishedAt.IsZero()},
		res.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", res.RunID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
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
	res, err := scanRun(r.db.QueryRowContext(ctx, selectRunSQL+" WHERE run_id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RunResult{}, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	if err != nil {
		return core.RunResult{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return res, nil
}

// List implements core.RunRepository.
func (r *RunRepository) List(ctx context.Context, limit int) ([]core.RunResult, error) {
	rows, err := r.db.QueryContext(ctx, selectRunSQL+" ORDER BY started_at DESC LIMIT ?", core.ClampRunListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunResult
	for rows.Next() {
		res, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row scanner) (core.RunResult, error) {
	var (
		res        core.RunResult
		status     string
		errText    sql.NullString
		finishedAt sql.NullTime
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
	res.Error = errText.String
	if finishedAt.Valid {
		res.FinishedAt = finishedAt.Time
	}
	return res, nil
}

// Truncate forgets every recorded run.
func (r *RunRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "TRUNCATE TABLE ingest_runs"); err != nil {
		return fmt.Errorf("truncate runs: %w", err)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}
