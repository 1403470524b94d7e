// Package admin provides destructive maintenance operations.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// Resetter empties one table.
type Resetter interface {
	Truncate(ctx context.Context) error
}

// ResetAll truncates every table in order and stops at the first failure.
// Truncating ingest_runs makes previously used run ids acceptable again.
func ResetAll(ctx context.Context, resetters ...Resetter) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for i, r := range resetters {
		if err := r.Truncate(ctx); err != nil {
			return fmt.Errorf("reset %d of %d: %w", i+1, len(resetters), err)
		}
	}
	slog.Warn("database reset", "tables", len(resetters))
	return nil
}
