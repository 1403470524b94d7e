package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/nutriload/internal/schema"
)

// Migrate creates the foods and ingest_runs tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, t := range schema.Tables() {
		if _, err := db.ExecContext(ctx, t.CreateSQL(schema.MySQL)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}
