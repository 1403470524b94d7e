// Package store opens the configured database backend and returns the
// food store and run repository the pipeline writes to.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/nutriload/internal/admin"
	"github.com/JonMunkholm/nutriload/internal/config"
	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/JonMunkholm/nutriload/internal/store/mysql"
	"github.com/JonMunkholm/nutriload/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend bundles one database connection with the stores built on it.
type Backend struct {
	Driver string
	Foods  core.FoodStore
	Runs   core.RunRepository

	// Resetters truncate foods and runs, in that order.
	Resetters []admin.Resetter

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the database connection.
func (b *Backend) Ping(ctx context.Context) error { return b.ping(ctx) }

// Close releases the connection pool.
func (b *Backend) Close() { b.close() }

// Open connects to the database named by cfg and applies the schema when
// cfg.Migrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "":
		return openPostgres(ctx, cfg)
	case "mysql":
		return openMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("connected to database", "driver", "postgres", "name", poolConfig.ConnConfig.Database)

	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	foods := postgres.NewFoodStore(pool)
	runs := postgres.NewRunRepository(pool)
	return &Backend{
		Driver:    "postgres",
		Foods:     foods,
		Runs:      runs,
		Resetters: []admin.Resetter{foods, runs},
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}

func openMySQL(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	db, err := mysql.Open(ctx, cfg.URL, mysql.PoolOptions{
		MaxOpenConns:    cfg.MaxConns,
		MaxIdleConns:    cfg.MinConns,
		ConnMaxLifetime: cfg.MaxConnLifetime,
		ConnMaxIdleTime: cfg.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database", "driver", "mysql")

	if cfg.Migrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	foods := mysql.NewFoodStore(db)
	runs := mysql.NewRunRepository(db)
	return &Backend{
		Driver:    "mysql",
		Foods:     foods,
		Runs:      runs,
		Resetters: []admin.Resetter{foods, runs},
		ping:      db.PingContext,
		close:     func() { db.Close() },
	}, nil
}

// Memory returns a process-local backend for dry runs.
func Memory() *Backend {
	foods := core.NewMemoryFoodStore()
	return &Backend{
		Driver: "memory",
		Foods:  foods,
		Runs:   core.NewMemoryRunRepository(),
		ping:   func(context.Context) error { return nil },
		close:  func() {},
	}
}
