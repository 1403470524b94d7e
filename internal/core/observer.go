package core

import "time"

// Observer receives pipeline events for metrics. Implementations must be
// safe for concurrent use.
type Observer interface {
	RunStarted()
	ChunkCommitted(records int, elapsed time.Duration)
	ChunkFailed(elapsed time.Duration)
	TokenDegraded(field string)
	RunFinished(res RunResult)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) RunStarted() {}
func (NopObserver) ChunkCommitted(int, time.Duration) {}
func (NopObserver) ChunkFailed(time.Duration) {}
func (NopObserver) TokenDegraded(string) {}
func (NopObserver) RunFinished(RunResult) {}
