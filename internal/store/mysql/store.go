// Package mysql implements the food store and run repository on MySQL
// through database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/go-sql-driver/mysql"
)

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to MySQL. Timestamps are parsed into time.Time in UTC and
// UPDATE reports matched rather than changed rows.
func Open(ctx context.Context, dsn string, opts PoolOptions) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

const foodColumns = "food_code, food_name, category, serving_size, unit, calories, protein, fat, carbohydrate"

const foodUpdates = `
ON DUPLICATE KEY UPDATE
	food_name    = VALUES(food_name),
	category     = VALUES(category),
	serving_size = VALUES(serving_size),
	unit         = VALUES(unit),
	calories     = VALUES(calories),
	protein      = VALUES(protein),
	fat          = VALUES(fat),
	carbohydrate = VALUES(carbohydrate),
	updated_at   = CURRENT_TIMESTAMP(6)`

const selectFoods = `SELECT food_id, food_code, food_name, category, serving_size, unit,
	calories, protein, fat, carbohydrate, created_at, updated_at FROM foods`

// FoodStore stores foods in the foods table. It implements core.FoodStore.
type FoodStore struct {
	db *sql.DB
}

// NewFoodStore returns a store backed by db.
func NewFoodStore(db *sql.DB) *FoodStore {
	return &FoodStore{db: db}
}

// UpsertBatch writes the chunk as one multi-row upsert inside a transaction.
func (s *FoodStore) UpsertBatch(ctx context.Context, foods []core.Food) error {
	if len(foods) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := buildUpsert(foods)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %d foods: %w", len(foods), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Upsert writes a single food.
func (s *FoodStore) Upsert(ctx context.Context, food core.Food) error {
	query, args := buildUpsert([]core.Food{food})
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert food %q: %w", food.FoodCode, err)
	}
	return nil
}

// CountAll returns the number of stored foods.
func (s *FoodStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM foods").Scan(&n); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return n, nil
}

// FindAll returns every food ordered by id.
func (s *FoodStore) FindAll(ctx context.Context) ([]core.Food, error) {
	rows, err := s.db.QueryContext(ctx, selectFoods+" ORDER BY food_id")
	if err != nil {
		return nil, fmt.Errorf("query foods: %w", err)
	}
	defer rows.Close()

	var out []core.Food
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foods: %w", err)
	}
	return out, nil
}

// FindByCode returns the food with the given code or core.ErrFoodNotFound.
func (s *FoodStore) FindByCode(ctx context.Context, code string) (core.Food, error) {
	f, err := scanFood(s.db.QueryRowContext(ctx, selectFoods+" WHERE food_code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Food{}, fmt.Errorf("%w: %s", core.ErrFoodNotFound, code)
	}
	if err != nil {
		return core.Food{}, fmt.Errorf("find food %q: %w", code, err)
	}
	return f, nil
}

// Truncate removes all foods.
func (s *FoodStore) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE foods"); err != nil {
		return fmt.Errorf("truncate foods: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFood(row scanner) (core.Food, error) {
	var f core.Food
	err := row.Scan(
		&f.ID, &f.FoodCode, &f.FoodName, &f.Category, &f.ServingSize, &f.Unit,
		&f.Calories, &f.Protein, &f.Fat, &f.Carbohydrate, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

// buildUpsert renders one INSERT ... ON DUPLICATE KEY UPDATE for all foods.
// A later row with the same code wins, matching row-by-row upserts.
func buildUpsert(foods []core.Food) (string, []any) {
	const rowPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var b strings.Builder
	b.WriteString("INSERT INTO foods (")
	b.WriteString(foodColumns)
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(foods)*9)
	for i, f := range foods {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rowPlaceholders)
		args = append(args,
			f.FoodCode, f.FoodName, f.Category, f.ServingSize, f.Unit,
			f.Calories, f.Protein, f.Fat, f.Carbohydrate,
		)
	}
	b.WriteString(foodUpdates)
	return b.String(), args
}
