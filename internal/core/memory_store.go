package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryFoodStore is an in-process FoodStore used for dry runs and tests.
// UpsertBatch applies a chunk atomically under one lock.
type MemoryFoodStore struct {
	mu     sync.RWMutex
	foods  map[string]Food
	nextID int64
	now    func() time.Time
}

// NewMemoryFoodStore returns an empty store.
func NewMemoryFoodStore() *MemoryFoodStore {
	return &MemoryFoodStore{foods: make(map[string]Food), now: time.Now}
}

// UpsertBatch implements FoodStore.
func (m *MemoryFoodStore) UpsertBatch(_ context.Context, foods []Food) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range foods {
		m.upsertLocked(f)
	}
	return nil
}

// Upsert implements FoodStore.
func (m *MemoryFoodStore) Upsert(_ context.Context, food Food) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertLocked(food)
	return nil
}

func (m *MemoryFoodStore) upsertLocked(f Food) {
	now := m.now()
	if existing, ok := m.foods[f.FoodCode]; ok {
		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		f.ID = m.nextID
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	m.foods[f.FoodCode] = f
}

// CountAll implements FoodStore.
func (m *MemoryFoodStore) CountAll(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.foods)), nil
}

// FindAll implements FoodStore. Foods are ordered by id.
func (m *MemoryFoodStore) FindAll(_ context.Context) ([]Food, error) {
	m.mu.RLock()
	out := make([]Food, 0, len(m.foods))
	for _, f := range m.foods {
		out = append(out, f)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindByCode implements FoodStore.
func (m *MemoryFoodStore) FindByCode(_ context.Context, code string) (Food, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.foods[code]
	if !ok {
		return Food{}, ErrFoodNotFound
	}
	return f, nil
}
