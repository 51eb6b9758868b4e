package recorder

import "CryptoPulse/internal/model"

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(report *model.RunReport) error
	RecentRuns(n int) ([]model.RunReport, error)
	Close() error
}
