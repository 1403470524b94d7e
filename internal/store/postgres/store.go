// Package postgres implements the food store and run repository on
// PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertFoodSQL = `
INSERT INTO foods (food_code, food_name, category, serving_size, unit, calories, protein, fat, carbohydrate)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (food_code) DO UPDATE SET
	food_name    = EXCLUDED.food_name,
	category     = EXCLUDED.category,
	serving_size = EXCLUDED.serving_size,
	unit         = EXCLUDED.unit,
	calories     = EXCLUDED.calories,
	protein      = EXCLUDED.protein,
	fat          = EXCLUDED.fat,
	carbohydrate = EXCLUDED.carbohydrate,
	updated_at   = now()`

const selectFoodColumns = `food_id, food_code, food_name, category, serving_size, unit,
	calories, protein, fat, carbohydrate, created_at, updated_at`

// FoodStore stores foods in the foods table. It implements core.FoodStore.
type FoodStore struct {
	db DB
}

// NewFoodStore returns a store backed by db.
func NewFoodStore(db DB) *FoodStore {
	return &FoodStore{db: db}
}

// UpsertBatch writes all foods in one transaction. The statements are sent
// as a single pgx batch; any failure rolls the whole chunk back.
func (s *FoodStore) UpsertBatch(ctx context.Context, foods []core.Food) error {
	if len(foods) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, f := range foods {
		batch.Queue(upsertFoodSQL, foodArgs(f)...)
	}

	br := tx.SendBatch(ctx, batch)
	for _, f := range foods {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert food %q: %w", f.FoodCode, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Upsert writes a single food outside any chunk.
func (s *FoodStore) Upsert(ctx context.Context, food core.Food) error {
	if _, err := s.db.Exec(ctx, upsertFoodSQL, foodArgs(food)...); err != nil {
		return fmt.Errorf("upsert food %q: %w", food.FoodCode, err)
	}
	return nil
}

// CountAll returns the number of stored foods.
func (s *FoodStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM foods").Scan(&n); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return n, nil
}

// FindAll returns every food ordered by id.
func (s *FoodStore) FindAll(ctx context.Context) ([]core.Food, error) {
	rows, err := s.db.Query(ctx, "SELECT "+selectFoodColumns+" FROM foods ORDER BY food_id")
	if err != nil {
		return nil, fmt.Errorf("query foods: %w", err)
	}

	stored, err := pgx.CollectRows(rows, pgx.RowToStructByName[foodRow])
	if err != nil {
		return nil, fmt.Errorf("scan foods: %w", err)
	}

	foods := make([]core.Food, len(stored))
	for i, r := range stored {
		foods[i] = r.toFood()
	}
	return foods, nil
}

// FindByCode returns the food with the given code or core.ErrFoodNotFound.
func (s *FoodStore) FindByCode(ctx context.Context, code string) (core.Food, error) {
	var r foodRow
	err := s.db.QueryRow(ctx, "SELECT "+selectFoodColumns+" FROM foods WHERE food_code = $1", code).Scan(
		&r.ID, &r.FoodCode, &r.FoodName, &r.Category, &r.ServingSize, &r.Unit,
		&r.Calories, &r.Protein, &r.Fat, &r.Carbohydrate, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Food{}, fmt.Errorf("%w: %s", core.ErrFoodNotFound, code)
	}
	if err != nil {
		return core.Food{}, fmt.Errorf("find food %q: %w", code, err)
	}
	return r.toFood(), nil
}

// Truncate removes all foods.
func (s *FoodStore) Truncate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE foods RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate foods: %w", err)
	}
	return nil
}

type foodRow struct {
	ID           int64     `db:"food_id"`
	FoodCode     string    `db:"food_code"`
	FoodName     string    `db:"food_name"`
	Category     string    `db:"category"`
	ServingSize  float64   `db:"serving_size"`
	Unit         string    `db:"unit"`
	Calories     float64   `db:"calories"`
	Protein      float64   `db:"protein"`
	Fat          float64   `db:"fat"`
	Carbohydrate float64   `db:"carbohydrate"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r foodRow) toFood() core.Food {
	return core.Food{
		ID:           r.ID,
		FoodCode:     r.FoodCode,
		FoodName:     r.FoodName,
		Category:     r.Category,
		ServingSize:  r.ServingSize,
		Unit:         r.Unit,
		Calories:     r.Calories,
		Protein:      r.Protein,
		Fat:          r.Fat,
		Carbohydrate: r.Carbohydrate,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func foodArgs(f core.Food) []any {
	return []any{
		f.FoodCode, f.FoodName, f.Category, f.ServingSize, f.Unit,
		f.Calories, f.Protein, f.Fat, f.Carbohydrate,
	}
}
