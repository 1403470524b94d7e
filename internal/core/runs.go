package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RunRepository records runs and guarantees each run id is accepted once.
type RunRepository interface {
	// Begin atomically records runID as RUNNING, or returns ErrDuplicateRun
	// if the id was seen before.
	Begin(ctx context.Context, runID string, startedAt time.Time) error
	// Finish stores the terminal result of an accepted run.
	Finish(ctx context.Context, res RunResult) error
	// Get returns the stored result, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (RunResult, error)
	// List returns up to limit runs, newest first. A non-positive limit
	// means DefaultRunListLimit.
	List(ctx context.Context, limit int) ([]RunResult, error)
}

// DefaultRunListLimit caps List when the caller gives no limit.
const DefaultRunListLimit = 50

// MaxRunListLimit is the largest limit List honors.
const MaxRunListLimit = 500

// ClampRunListLimit applies the List limit rules.
func ClampRunListLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRunListLimit
	case limit > MaxRunListLimit:
		return MaxRunListLimit
	}
	return limit
}

// CheckStoredStatus rejects a status read back from storage that this
// version does not know.
func CheckStoredStatus(runID string, status RunStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("run %s has unknown stored status %q", runID, status)
	}
	return nil
}

// MemoryRunRepository keeps runs in process memory. Ids are remembered for
// the life of the process.
type MemoryRunRepository struct {
	mu   sync.Mutex
	runs map[string]RunResult
}

// NewMemoryRunRepository returns an empty repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]RunResult)}
}

// Begin implements RunRepository.
func (m *MemoryRunRepository) Begin(_ context.Context, runID string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[runID]; ok {
		return ErrDuplicateRun
	}
	m.runs[runID] = RunResult{RunID: runID, Status: StatusRunning, StartedAt: startedAt}
	return nil
}

// Finish implements RunRepository.
func (m *MemoryRunRepository) Finish(_ context.Context, res RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[res.RunID]; !ok {
		return ErrRunNotFound
	}
	m.runs[res.RunID] = res
	return nil
}

// Get implements RunRepository.
func (m *MemoryRunRepository) Get(_ context.Context, runID string) (RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.runs[runID]
	if !ok {
		return RunResult{}, ErrRunNotFound
	}
	return res, nil
}

// List implements RunRepository.
func (m *MemoryRunRepository) List(_ context.Context, limit int) ([]RunResult, error) {
	m.mu.Lock()
	out := make([]RunResult, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit = ClampRunListLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
