package core

import "errors"

var (
	// ErrSourceUnavailable means the input could not be opened or read.
	// The run fails without committing anything further.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrChunkWriteFailed means a chunk transaction was rolled back. Chunks
	// committed before it are kept.
	ErrChunkWriteFailed = errors.New("chunk write failed")

	// ErrDuplicateRun means the run id was already used. Nothing is read or written.
	ErrDuplicateRun = errors.New("duplicate run id")

	// ErrRunInProgress means another run held the ingestion slot past the wait limit.
	ErrRunInProgress = errors.New("ingestion run already in progress")

	// ErrRunCancelled means the run was cancelled or timed out at a chunk boundary.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunNotFound means no run with the id has been recorded.
	ErrRunNotFound = errors.New("run not found")

	// ErrFoodNotFound means no food with the code exists.
	ErrFoodNotFound = errors.New("food not found")

	// ErrEmptyRunID is returned when a run is started without an id.
	ErrEmptyRunID = errors.New("run id is required")
)
