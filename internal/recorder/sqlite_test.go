package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
)

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), logger.Discard())
	require.NoError(t, err)
	defer r.Close()

	start := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	first := &model.RunReport{
		ID: "run-1", Trigger: "cron", StartedAt: start, FinishedAt: start.Add(40 * time.Second),
		State: model.StateDone, Destination: "local:data", SnapshotRows: 2, HistoryRows: 150,
		SentimentRows: 30, PriceRows: 5, GlobalOK: true,
		Skips: []model.Skip{{Kind: model.ResourceCoin, ID: "unknown-coin", Reason: "not returned by market source"}},
	}
	second := &model.RunReport{
		ID: "run-2", Trigger: "manual", StartedAt: start.Add(6 * time.Hour), FinishedAt: start.Add(6*time.Hour + time.Second),
		State: model.StateFailed, Err: "put workbook: disk full",
	}
	require.NoError(t, r.RecordRun(first))
	require.NoError(t, r.RecordRun(second))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, model.StateFailed, runs[0].State)
	assert.Equal(t, "put workbook: disk full", runs[0].Err)
	assert.Empty(t, runs[0].Skips)

	got := runs[1]
	assert.Equal(t, "run-1", got.ID)
	assert.True(t, got.GlobalOK)
	assert.Equal(t, 150, got.HistoryRows)
	assert.Equal(t, 40*time.Second, got.Duration())
	require.Len(t, got.Skips, 1)
	assert.Equal(t, first.Skips[0], got.Skips[0])
}

func TestSQLiteRecorderReplacesRun(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), logger.Discard())
	require.NoError(t, err)
	defer r.Close()

	rep := &model.RunReport{ID: "run-1", StartedAt: time.Now(), State: model.StateFetching}
	require.NoError(t, r.RecordRun(rep))
	rep.State = model.StateDone
	rep.FinishedAt = time.Now()
	rep.Skips = []model.Skip{{Kind: model.ResourceGlobal, Reason: "timeout"}}
	require.NoError(t, r.RecordRun(rep))

	runs, err := r.RecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.StateDone, runs[0].State)
	assert.Len(t, runs[0].Skips, 1)
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	require.NoError(t, r.RecordRun(&model.RunReport{ID: "x"}))
	runs, err := r.RecentRuns(3)
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, r.Close())
}
