package core

import (
	"context"
	"errors"
	"fmt"
)

// Sink commits one chunk of foods per Flush call. The whole chunk is upserted
// by FoodCode inside a single transaction, or nothing is. Errors must wrap
// ErrChunkWriteFailed. Flushing the same chunk twice leaves storage as after
// the first flush, apart from updated_at.
type Sink interface {
	Flush(ctx context.Context, chunk []Food) error
}

// FoodStore is the storage contract shared by the database backends.
type FoodStore interface {
	UpsertBatch(ctx context.Context, foods []Food) error
	Upsert(ctx context.Context, food Food) error
	CountAll(ctx context.Context) (int64, error)
	FindAll(ctx context.Context) ([]Food, error)
	FindByCode(ctx context.Context, code string) (Food, error)
}

// StoreSink adapts a FoodStore to Sink.
type StoreSink struct {
	Store FoodStore
}

// Flush implements Sink.
func (s StoreSink) Flush(ctx context.Context, chunk []Food) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := s.Store.UpsertBatch(ctx, chunk); err != nil {
		return asChunkWriteFailed(err)
	}
	return nil
}

func asChunkWriteFailed(err error) error {
	if errors.Is(err, ErrChunkWriteFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrChunkWriteFailed, err)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, chunk []Food) error

// Flush calls f.
func (f SinkFunc) Flush(ctx context.Context, chunk []Food) error { return f(ctx, chunk) }
