package core

// scheduler.go re-imports the source periodically so the food table tracks
// updates to the dataset. Each tick starts a run with a fresh id. A tick that
// finds a run already in progress is skipped, not queued.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StartScheduler runs an import immediately and then every interval until
// ctx is cancelled. It blocks; call it in its own goroutine. A non-positive
// interval returns at once.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	slog.Info("ingestion scheduler started", "interval", interval.String())

	s.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingestion scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

// runScheduled performs one scheduled run. Failures are logged, never fatal.
func (s *Service) runScheduled(ctx context.Context) {
	runID := "scheduled-" + uuid.NewString()

	res, err := s.runNow(ctx, runID, s.tryAcquire)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("scheduled run skipped, another run is active", "run_id", runID)
	case err != nil:
		slog.Error("scheduled run rejected", "run_id", runID, "error", err)
	case res.Status == StatusFailed:
		slog.Warn("scheduled run failed",
			"run_id", runID,
			"chunks_committed", res.ChunksCommitted,
			"error", res.Err,
		)
	}
}
