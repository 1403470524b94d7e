package core

import (
	"time"
)

// RawRecord holds the text tokens of one input line, picked by position.
// It is never persisted and never modified after the source creates it.
type RawRecord struct {
	Code         string
	Name         string
	Category     string
	ServingSize  string
	Calories     string
	Protein      string
	Fat          string
	Carbohydrate string

	// Line is the 1-based line number in the source, used in diagnostics.
	Line int
}

// Food is the canonical nutrition record, keyed by FoodCode.
// Nutrient values are per 100 units of Unit.
type Food struct {
	ID           int64     `json:"food_id,omitempty"`
	FoodCode     string    `json:"food_code"`
	FoodName     string    `json:"food_name"`
	Category     string    `json:"category"`
	ServingSize  float64   `json:"serving_size"`
	Unit         string    `json:"unit"`
	Calories     float64   `json:"calories"`
	Protein      float64   `json:"protein"`
	Fat          float64   `json:"fat"`
	Carbohydrate float64   `json:"carbohydrate"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// Field names used in diagnostics and the layout file.
const (
	FieldCode         = "food_code"
	FieldName         = "food_name"
	FieldCategory     = "category"
	FieldServingSize  = "serving_size"
	FieldCalories     = "calories"
	FieldProtein      = "protein"
	FieldFat          = "fat"
	FieldCarbohydrate = "carbohydrate"
)

// RunStatus is the lifecycle state of one ingestion run.
type RunStatus string

const (
	StatusNotStarted RunStatus = "NOT_STARTED"
	StatusRunning    RunStatus = "RUNNING"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusFailed     RunStatus = "FAILED"
)

// IsValid reports whether s is a known status.
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunResult summarizes a run. While the run is active it is a snapshot whose
// counters only grow.
type RunResult struct {
	RunID            string    `json:"run_id"`
	Status           RunStatus `json:"status"`
	ChunksCommitted  int       `json:"chunks_committed"`
	RecordsCommitted int       `json:"records_committed"`
	RecordsRead      int       `json:"records_read"`
	RowsDegraded     int       `json:"rows_degraded"`
	TokensDegraded   int       `json:"tokens_degraded"`
	BytesRead        int64     `json:"bytes_read"`
	Progress         int       `json:"progress,omitempty"` // percent of the source read; 0 when its size is unknown
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at,omitzero"`
	FinishedAt       time.Time `json:"finished_at,omitzero"`

	// Err is the failure cause for FAILED runs. It is not serialized; Error
	// carries its text.
	Err error `json:"-"`
}

// Duration returns how long the run took, or has taken so far.
func (r RunResult) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
