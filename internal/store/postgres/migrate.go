package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/nutriload/internal/schema"
)

// Migrate creates the foods and ingest_runs tables if they do not exist.
func Migrate(ctx context.Context, db DB) error {
	for _, t := range schema.Tables() {
		if _, err := db.Exec(ctx, t.CreateSQL(schema.Postgres)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		slog.Debug("table ready", "table", t.Name)
	}
	return nil
}
