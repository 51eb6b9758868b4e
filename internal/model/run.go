package model

import "time"

// RunState is the batch job lifecycle.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateFetching RunState = "fetching"
	StateWriting  RunState = "writing"
	StateDone     RunState = "done"
	StateFailed   RunState = "failed"
)

// RunReport summarises one run for logs, run history and notifications.
type RunReport struct {
	ID            string
	Trigger       string
	StartedAt     time.Time
	FinishedAt    time.Time
	State         RunState
	Destination   string
	SnapshotRows  int
	HistoryRows   int
	SentimentRows int
	PriceRows     int
	GlobalOK      bool
	Skips         []Skip
	Err           string

	// WorkbookWritten is set once the new workbook reached the destination,
	// even if a later export failed.
	WorkbookWritten bool
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Partial reports whether the run finished with some resources skipped.
func (r *RunReport) Partial() bool {
	return r.State == StateDone && len(r.Skips) > 0
}
