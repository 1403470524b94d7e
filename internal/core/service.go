package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout bounds a single run when ServiceConfig.Timeout is zero.
const DefaultRunTimeout = 30 * time.Minute

// RunLock serializes runs across processes. Obtain returns ErrRunInProgress
// when another holder has the lock.
type RunLock interface {
	Obtain(ctx context.Context) (release func(), err error)
}

// ServiceConfig holds optional Service settings.
type ServiceConfig struct {
	Timeout     time.Duration
	MaxWaitTime time.Duration

	// Lock, when set, is held for the duration of every run in addition to
	// the in-process limiter.
	Lock RunLock
}

// Service is the entry point for the HTTP server, the scheduler and the CLI.
type Service struct {
	pipeline *Pipeline
	foods    FoodStore
	limiter  *RunLimiter
	lock     RunLock
	timeout  time.Duration

	// ctx ends when the service shuts down; every run is cancelled with it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	active map[string]*activeRun
}

type activeRun struct {
	run    *Run
	cancel context.CancelFunc
}

// NewService creates a Service. foods may be nil when only runs are needed.
func NewService(p *Pipeline, foods FoodStore, cfg ServiceConfig) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		pipeline: p,
		foods:    foods,
		limiter:  NewRunLimiter(1, cfg.MaxWaitTime),
		lock:     cfg.Lock,
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]*activeRun),
	}
}

// StartRun begins an asynchronous run and returns its id once the run has
// been accepted. An empty runID gets a generated one. Duplicate ids and a
// busy ingestion slot are reported here, before anything is read.
func (s *Service) StartRun(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}

	run, err := s.pipeline.Begin(ctx, runID)
	if err != nil {
		release()
		return "", err
	}

	// The run outlives the request that started it.
	runCtx, cancel := s.runContext(context.WithoutCancel(ctx))
	s.track(run, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		defer cancel()
		defer s.untrack(runID)

		run.Execute(runCtx)
	}()

	return runID, nil
}

// RunNow executes a run synchronously. Cancelling ctx stops the run at the
// next chunk boundary.
func (s *Service) RunNow(ctx context.Context, runID string) (RunResult, error) {
	return s.runNow(ctx, runID, s.acquire)
}

func (s *Service) runNow(ctx context.Context, runID string, acquire func(context.Context) (func(), error)) (RunResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	release, err := acquire(ctx)
	if err != nil {
		return RunResult{RunID: runID, Status: StatusNotStarted}, err
	}
	defer release()

	run, err := s.pipeline.Begin(ctx, runID)
	if err != nil {
		return RunResult{RunID: runID, Status: StatusNotStarted}, err
	}

	runCtx, cancel := s.runContext(ctx)
	defer cancel()
	s.track(run, cancel)
	defer s.untrack(runID)

	return run.Execute(runCtx), nil
}

// GetRun returns a live snapshot for an active run or the stored result.
func (s *Service) GetRun(ctx context.Context, runID string) (RunResult, error) {
	s.mu.RLock()
	ar, ok := s.active[runID]
	s.mu.RUnlock()
	if ok {
		return ar.run.Snapshot(), nil
	}
	return s.pipeline.runs.Get(ctx, runID)
}

// CancelRun requests cancellation of an active run. The run stops at its
// next chunk boundary.
func (s *Service) CancelRun(runID string) error {
	s.mu.RLock()
	ar, ok := s.active[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not active", ErrRunNotFound, runID)
	}
	ar.cancel()
	return nil
}

// ActiveRuns returns snapshots of runs currently executing.
func (s *Service) ActiveRuns() []RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunResult, 0, len(s.active))
	for _, ar := range s.active {
		out = append(out, ar.run.Snapshot())
	}
	return out
}

// Busy reports whether this process has no free run slot.
func (s *Service) Busy() bool {
	return s.limiter.Available() == 0
}

// RecentRuns returns up to limit recorded runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]RunResult, error) {
	return s.pipeline.runs.List(ctx, limit)
}

// CountFoods returns the number of stored foods.
func (s *Service) CountFoods(ctx context.Context) (int64, error) {
	if s.foods == nil {
		return 0, errors.New("no food store configured")
	}
	return s.foods.CountAll(ctx)
}

// FindFood returns the food stored under code, or ErrFoodNotFound.
func (s *Service) FindFood(ctx context.Context, code string) (Food, error) {
	if s.foods == nil {
		return Food{}, errors.New("no food store configured")
	}
	return s.foods.FindByCode(ctx, code)
}

// Shutdown cancels active runs and waits for them to reach a terminal state.
// Runs stop at their next chunk boundary, so committed work is never lost.
// Synchronous runs from RunNow and the scheduler are awaited through the
// limiter, since they hold a slot until they finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, ar := range s.active {
		ar.cancel()
	}
	s.mu.RUnlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for active runs: %w", ctx.Err())
	}

	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("waiting for active runs: %w", err)
	}
	return nil
}

// acquire waits up to the limiter's max wait for the run slot.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	return s.take(ctx, s.limiter.Acquire)
}

// tryAcquire takes the run slot only if it is free now.
func (s *Service) tryAcquire(ctx context.Context) (func(), error) {
	return s.take(ctx, func(context.Context) error {
		if !s.limiter.TryAcquire() {
			return ErrRunInProgress
		}
		return nil
	})
}

func (s *Service) take(ctx context.Context, slot func(context.Context) error) (func(), error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("service shutting down: %w", err)
	}
	if err := slot(ctx); err != nil {
		return nil, err
	}
	if s.lock == nil {
		return s.limiter.Release, nil
	}

	unlock, err := s.lock.Obtain(ctx)
	if err != nil {
		s.limiter.Release()
		return nil, err
	}
	return func() {
		unlock()
		s.limiter.Release()
	}, nil
}

// runContext derives a run context bounded by the run timeout and cancelled
// on shutdown.
func (s *Service) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Service) track(run *Run, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[run.ID()] = &activeRun{run: run, cancel: cancel}
	s.mu.Unlock()
}

func (s *Service) untrack(runID string) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
	slog.Debug("run untracked", "run_id", runID)
}
