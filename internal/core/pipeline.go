package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChunkSize is the number of foods committed per transaction.
const DefaultChunkSize = 1000

// PipelineConfig wires a Pipeline. Source, Sink and Runs are required.
type PipelineConfig struct {
	Source    SourceOpener
	Sink      Sink
	Runs      RunRepository
	ChunkSize int

	// Reporter receives degraded-token diagnostics in addition to the run log.
	Reporter Reporter
	Observer Observer
	Logger   *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Pipeline reads, transforms and commits foods in fixed-size chunks.
// A Pipeline is safe for concurrent use; each run keeps its own state.
type Pipeline struct {
	source    SourceOpener
	sink      Sink
	runs      RunRepository
	chunkSize int
	reporter  Reporter
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline returns a pipeline with defaults applied for optional fields.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		source:    cfg.Source,
		sink:      cfg.Sink,
		runs:      cfg.Runs,
		chunkSize: cfg.ChunkSize,
		reporter:  cfg.Reporter,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if p.chunkSize <= 0 {
		p.chunkSize = DefaultChunkSize
	}
	if p.runs == nil {
		p.runs = NewMemoryRunRepository()
	}
	if p.observer == nil {
		p.observer = NopObserver{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ChunkSize returns the configured chunk size.
func (p *Pipeline) ChunkSize() int { return p.chunkSize }

// Run accepts runID and executes the run to completion.
//
// A reused id returns ErrDuplicateRun before the source is opened. Every
// other outcome, including source and chunk failures, is reported through
// the result's Status and Err with a nil error.
func (p *Pipeline) Run(ctx context.Context, runID string) (RunResult, error) {
	run, err := p.Begin(ctx, runID)
	if err != nil {
		return RunResult{RunID: runID, Status: StatusNotStarted}, err
	}
	return run.Execute(ctx), nil
}

// Begin registers runID and returns a handle in RUNNING state. Nothing is
// read until Execute.
func (p *Pipeline) Begin(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, ErrEmptyRunID
	}

	startedAt := p.now()
	if err := p.runs.Begin(ctx, runID, startedAt); err != nil {
		if errors.Is(err, ErrDuplicateRun) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRun, runID)
		}
		return nil, fmt.Errorf("register run %s: %w", runID, err)
	}

	return &Run{
		p:    p,
		done: make(chan struct{}),
		res: RunResult{
			RunID:     runID,
			Status:    StatusRunning,
			StartedAt: startedAt,
		},
	}, nil
}

// Run is one accepted ingestion run.
type Run struct {
	p *Pipeline

	mu  sync.Mutex
	res RunResult
	src RecordSource

	executed atomic.Bool
	done     chan struct{}
}

// ID returns the run id.
func (r *Run) ID() string { return r.res.RunID }

// Done is closed once the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Snapshot returns the current result. Counters are live while running.
func (r *Run) Snapshot() RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.res
	if r.src != nil && !res.Status.IsTerminal() {
		res.BytesRead = r.src.BytesRead()
		res.Progress = r.src.Progress()
	}
	return res
}

// Execute drives the run to COMPLETED or FAILED. ctx is checked only at chunk
// boundaries; a chunk that has started committing always finishes. Calling
// Execute again waits for the first call and returns its result.
func (r *Run) Execute(ctx context.Context) RunResult {
	if !r.executed.CompareAndSwap(false, true) {
		<-r.done
		return r.Snapshot()
	}
	defer close(r.done)

	p := r.p
	logger := p.logger.With("run_id", r.res.RunID)
	p.observer.RunStarted()
	logger.Info("ingestion run started", "chunk_size", p.chunkSize)

	err := r.drain(ctx, logger)

	r.mu.Lock()
	if r.src != nil {
		r.res.BytesRead = r.src.BytesRead()
		r.res.Progress = r.src.Progress()
	}
	r.res.FinishedAt = p.now()
	if err != nil {
		r.res.Status = StatusFailed
		r.res.Err = err
		r.res.Error = err.Error()
	} else {
		r.res.Status = StatusCompleted
	}
	res := r.res
	r.mu.Unlock()

	if ferr := p.runs.Finish(context.WithoutCancel(ctx), res); ferr != nil {
		logger.Error("failed to record run result", "error", ferr)
	}
	p.observer.RunFinished(res)

	attrs := []any{
		"status", res.Status,
		"chunks_committed", res.ChunksCommitted,
		"records_committed", res.RecordsCommitted,
		"records_read", res.RecordsRead,
		"rows_degraded", res.RowsDegraded,
		"duration_ms", res.Duration().Milliseconds(),
	}
	if err != nil {
		logger.Error("ingestion run failed", append(attrs, "error", err)...)
	} else {
		logger.Info("ingestion run completed", attrs...)
	}

	return res
}

func (r *Run) drain(ctx context.Context, logger *slog.Logger) error {
	p := r.p

	if err := ctx.Err(); err != nil {
		return cancelled(ctx, 0)
	}

	src, err := p.source.Open(ctx)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrSourceUnavailable) {
			return cancelled(ctx, 0)
		}
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return err
	}
	defer src.Close()

	r.mu.Lock()
	r.src = src
	r.mu.Unlock()

	reporter := MultiReporter{
		LogReporter{Logger: logger},
		ReporterFunc(func(d Diagnostic) { p.observer.TokenDegraded(d.Field) }),
		p.reporter,
	}
	tr := NewTransformer(NewSanitizer(reporter))

	chunk := make([]Food, 0, p.chunkSize)
	for {
		if len(chunk) == 0 && ctx.Err() != nil {
			return cancelled(ctx, r.Snapshot().ChunksCommitted)
		}

		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		chunk = append(chunk, tr.Transform(raw))

		r.mu.Lock()
		r.res.RecordsRead++
		r.res.RowsDegraded = tr.RowsDegraded()
		r.res.TokensDegraded = tr.TokensDegraded()
		r.mu.Unlock()

		if len(chunk) == p.chunkSize {
			if err := r.flush(ctx, chunk, logger); err != nil {
				return err
			}
			chunk = make([]Food, 0, p.chunkSize)
		}
	}

	if len(chunk) > 0 {
		return r.flush(ctx, chunk, logger)
	}
	return nil
}

// flush commits one chunk. The sink sees a context that is not cancelled
// with ctx so an in-flight transaction is never torn down mid-chunk.
func (r *Run) flush(ctx context.Context, chunk []Food, logger *slog.Logger) error {
	p := r.p
	start := time.Now()

	err := p.sink.Flush(context.WithoutCancel(ctx), chunk)
	elapsed := time.Since(start)
	if err != nil {
		p.observer.ChunkFailed(elapsed)
		return asChunkWriteFailed(err)
	}

	r.mu.Lock()
	r.res.ChunksCommitted++
	r.res.RecordsCommitted += len(chunk)
	n := r.res.ChunksCommitted
	r.mu.Unlock()

	p.observer.ChunkCommitted(len(chunk), elapsed)
	logger.Debug("chunk committed",
		"chunk", n,
		"records", len(chunk),
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

func cancelled(ctx context.Context, chunks int) error {
	return fmt.Errorf("%w after %d chunks: %w", ErrRunCancelled, chunks, context.Cause(ctx))
}
