package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/pipeline"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	state    model.RunState
	last     *model.RunReport
	ran      chan string
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (*model.RunReport, error) {
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- trigger
	}
	return &model.RunReport{Trigger: trigger, State: model.StateDone}, nil
}

func (f *fakeRunner) State() model.RunState        { return f.state }
func (f *fakeRunner) LastReport() *model.RunReport { return f.last }

type fakeRecorder struct {
	runs []model.RunReport
	err  error
}

func (f *fakeRecorder) RecordRun(*model.RunReport) error          { return nil }
func (f *fakeRecorder) RecentRuns(int) ([]model.RunReport, error) { return f.runs, f.err }
func (f *fakeRecorder) Close() error                              { return nil }

func newTestScheduler(r *fakeRunner, rec *fakeRecorder) *Scheduler {
	return NewScheduler(context.Background(), r, rec, time.UTC, logger.Discard())
}

func TestRegisterRejectsBadExpression(t *testing.T) {
	s := newTestScheduler(&fakeRunner{state: model.StateIdle}, &fakeRecorder{})
	assert.Error(t, s.Register("every now and then"))
	assert.Error(t, s.Register("0 */6 * * *"), "seconds field is required")
	require.NoError(t, s.Register("0 0 */6 * * *"))
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestCronTriggersRun(t *testing.T) {
	r := &fakeRunner{state: model.StateIdle, ran: make(chan string, 4)}
	s := newTestScheduler(r, &fakeRecorder{})
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	defer s.Stop()

	select {
	case trigger := <-r.ran:
		assert.Equal(t, "cron", trigger)
	case <-time.After(3 * time.Second):
		t.Fatal("cron job did not fire")
	}
}

func TestRunNow(t *testing.T) {
	r := &fakeRunner{state: model.StateIdle}
	s := newTestScheduler(r, &fakeRecorder{})

	rep, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, "manual", rep.Trigger)
}

func TestHandleRunCommand(t *testing.T) {
	r := &fakeRunner{state: model.StateIdle, ran: make(chan string, 1)}
	s := newTestScheduler(r, &fakeRecorder{})

	assert.Equal(t, "Refresh started.", s.HandleCommand("/run"))
	select {
	case trigger := <-r.ran:
		assert.Equal(t, "command", trigger)
	case <-time.After(3 * time.Second):
		t.Fatal("run was not started")
	}

	r.state = model.StateWriting
	assert.Contains(t, s.HandleCommand("/run"), "already in progress")
}

func TestHandleStatusCommand(t *testing.T) {
	r := &fakeRunner{state: model.StateIdle}
	s := newTestScheduler(r, &fakeRecorder{})
	assert.Contains(t, s.HandleCommand("/status"), "No run since start")

	r.last = &model.RunReport{State: model.StateDone, SnapshotRows: 7, GlobalOK: true}
	reply := s.HandleCommand("/STATUS")
	assert.Contains(t, reply, "State: idle")
	assert.Contains(t, reply, "Market rows: 7")
}

func TestHandleHistoryCommand(t *testing.T) {
	rec := &fakeRecorder{runs: []model.RunReport{{StartedAt: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC), State: model.StateDone}}}
	s := newTestScheduler(&fakeRunner{}, rec)
	assert.Contains(t, s.HandleCommand("/history"), "03-01 06:00")

	rec.err = errors.New("locked")
	assert.Equal(t, "Run history is unavailable.", s.HandleCommand("/history"))
}

func TestHandleUnknownCommand(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeRecorder{})
	assert.Contains(t, s.HandleCommand("hello"), "/run")
	assert.Contains(t, s.HandleCommand(""), "/status")
}

func TestRunLogsSkippedOverlap(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeRecorder{})
	s.Runner = &overlapRunner{}
	assert.NotPanics(t, func() { s.run("cron") })
}

type overlapRunner struct{ fakeRunner }

func (overlapRunner) Run(context.Context, string) (*model.RunReport, error) {
	return nil, pipeline.ErrRunInProgress
}
