// Package pipeline runs one refresh: collect, build the workbook, write it
// and its exports, then record and announce the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"CryptoPulse/internal/export"
	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/notifier"
	"CryptoPulse/internal/recorder"
	"CryptoPulse/internal/sheet"
	"CryptoPulse/internal/storage"
)

var (
	// ErrRunInProgress is returned when Run is called while another run is
	// still in flight.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrNoData is returned when every upstream resource failed. The
	// existing workbook is left untouched.
	ErrNoData = errors.New("no data collected")
)

// Collector produces one dataset per call.
type Collector interface {
	Collect(ctx context.Context) (*model.Dataset, error)
}

// Notifier delivers run summaries.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options controls where and how the output is written.
type Options struct {
	FileName           string
	Parquet            bool
	ParquetCompression string
	Location           *time.Location
	Currency           string
	ReplaceCorrupt     bool
}

// Runner executes refresh runs one at a time.
type Runner struct {
	Collector Collector
	Store     storage.Store
	Recorder  recorder.Recorder
	Notifier  Notifier // optional
	Options   Options

	running sync.Mutex
	mu      sync.RWMutex
	state   model.RunState
	last    *model.RunReport
	log     *logger.Entry
}

// NewRunner wires a Runner. A nil recorder records nothing.
func NewRunner(col Collector, store storage.Store, rec recorder.Recorder, opts Options, log *logger.Log) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{
		Collector: col,
		Store:     store,
		Recorder:  rec,
		Options:   opts,
		state:     model.StateIdle,
		log:       log.WithComponent("pipeline"),
	}
}

// State reports the current run state.
func (r *Runner) State() model.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastReport returns the most recent finished run, or nil.
func (r *Runner) LastReport() *model.RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

func (r *Runner) setState(s model.RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run performs one refresh. Every fetch completes before anything is
// written. The returned report is non-nil whenever the run started, also
// on failure.
func (r *Runner) Run(ctx context.Context, trigger string) (*model.RunReport, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	rep := &model.RunReport{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		StartedAt:   time.Now().UTC(),
		Destination: r.Store.Name(),
	}
	log := r.log.WithFields(logger.Fields{"run_id": rep.ID, "trigger": trigger})
	log.Info("run started")

	err := r.execute(ctx, rep, log)

	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		rep.State = model.StateFailed
		rep.Err = err.Error()
		log.WithError(err).Error("run failed")
	} else {
		rep.State = model.StateDone
		log.WithFields(logger.Fields{
			"snapshots": rep.SnapshotRows,
			"history":   rep.HistoryRows,
			"skips":     len(rep.Skips),
			"duration":  rep.Duration().String(),
		}).Info("run finished")
	}

	r.mu.Lock()
	r.state = rep.State
	r.last = rep
	r.mu.Unlock()

	if rerr := r.Recorder.RecordRun(rep); rerr != nil {
		log.WithError(rerr).Error("record run")
	}
	r.announce(ctx, rep, log)
	return rep, err
}

func (r *Runner) execute(ctx context.Context, rep *model.RunReport, log *logger.Entry) error {
	r.setState(model.StateFetching)
	ds, err := r.Collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	rep.SnapshotRows = len(ds.Snapshots)
	rep.HistoryRows = ds.HistoryRows()
	rep.SentimentRows = len(ds.Sentiment)
	rep.PriceRows = len(ds.Prices)
	rep.GlobalOK = ds.Global.Available
	rep.Skips = ds.Skips
	for _, s := range ds.Skips {
		log.WithFields(logger.Fields{"kind": s.Kind, "id": s.ID}).Warn("skipped: " + s.Reason)
	}
	if empty(ds) {
		return ErrNoData
	}

	r.setState(model.StateWriting)
	return r.write(ctx, ds, rep, log)
}

func (r *Runner) write(ctx context.Context, ds *model.Dataset, rep *model.RunReport, log *logger.Entry) error {
	started := time.Now()
	existing, err := r.Store.Get(ctx, r.Options.FileName)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("read existing workbook: %w", err)
	}

	book, err := sheet.Build(existing, ds, sheet.Options{
		Location:       r.Options.Location,
		Currency:       r.Options.Currency,
		ReplaceCorrupt: r.Options.ReplaceCorrupt,
	})
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	if err := r.Store.Put(ctx, r.Options.FileName, book); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	rep.WorkbookWritten = true
	logger.LogDuration(log, "write_workbook", started, logger.Fields{"bytes": len(book), "file": r.Options.FileName})

	if !r.Options.Parquet {
		return nil
	}
	files, err := export.Parquet(ds, r.Options.ParquetCompression)
	if err != nil {
		return fmt.Errorf("export parquet: %w", err)
	}
	for _, f := range files {
		if err := r.Store.Put(ctx, f.Name, f.Data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	log.WithFields(logger.Fields{"files": len(files)}).Info("parquet export written")
	return nil
}

func (r *Runner) announce(ctx context.Context, rep *model.RunReport, log *logger.Entry) {
	if r.Notifier == nil {
		return
	}
	text := notifier.FormatRunReport(rep, r.Options.Location)
	if err := r.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		log.WithError(err).Error("send notification")
	}
}

func empty(ds *model.Dataset) bool {
	return !ds.Global.Available &&
		len(ds.Snapshots) == 0 &&
		len(ds.Sentiment) == 0 &&
		len(ds.Histories) == 0 &&
		len(ds.Prices) == 0
}
