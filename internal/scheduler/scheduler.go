package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/notifier"
	"CryptoPulse/internal/pipeline"
	"CryptoPulse/internal/recorder"
)

// Runner is the refresh job the scheduler triggers.
type Runner interface {
	Run(ctx context.Context, trigger string) (*model.RunReport, error)
	State() model.RunState
	LastReport() *model.RunReport
}

// Scheduler triggers refresh runs on a cron schedule and on command.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Recorder recorder.Recorder
	Location *time.Location
	Ctx      context.Context
	log      *logger.Entry
}

// NewScheduler creates a new Scheduler. Cron expressions carry a seconds
// field and overlapping cron runs are skipped.
func NewScheduler(ctx context.Context, runner Runner, rec recorder.Recorder, loc *time.Location, log *logger.Log) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	entry := log.WithComponent("scheduler")
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		Runner:   runner,
		Recorder: rec,
		Location: loc,
		Ctx:      ctx,
		log:      entry,
	}
}

// Register adds the refresh job for expr.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, func() { s.run("cron") }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	s.log.WithFields(logger.Fields{"cron": expr}).Info("refresh task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes a refresh immediately (manual trigger / run on start).
func (s *Scheduler) RunNow() (*model.RunReport, error) {
	return s.Runner.Run(s.Ctx, "manual")
}

func (s *Scheduler) run(trigger string) {
	if _, err := s.Runner.Run(s.Ctx, trigger); errors.Is(err, pipeline.ErrRunInProgress) {
		s.log.WithFields(logger.Fields{"trigger": trigger}).Warn("refresh skipped, previous run still active")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	name := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		name = strings.ToLower(fields[0])
	}
	switch name {
	case "/run":
		if st := s.Runner.State(); st == model.StateFetching || st == model.StateWriting {
			return fmt.Sprintf("A run is already in progress (%s).", st)
		}
		go s.run("command")
		return "Refresh started."
	case "/status":
		return s.status()
	case "/history":
		runs, err := s.Recorder.RecentRuns(10)
		if err != nil {
			s.log.WithError(err).Error("load recent runs")
			return "Run history is unavailable."
		}
		return notifier.FormatRecentRuns(runs, s.Location)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) status() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("State: %s\n", s.Runner.State()))
	if entries := s.Cron.Entries(); len(entries) > 0 && !entries[0].Next.IsZero() {
		b.WriteString(fmt.Sprintf("Next run: %s\n", entries[0].Next.In(s.Location).Format("2006-01-02 15:04 MST")))
	}
	if last := s.Runner.LastReport(); last != nil {
		b.WriteString("\n")
		b.WriteString(notifier.FormatRunReport(last, s.Location))
	} else {
		b.WriteString("No run since start.\n")
	}
	return b.String()
}
