package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logger.Log) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.WithComponent("recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.WithFields(logger.Fields{"path": dbPath}).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			run_trigger    TEXT,
			started_at     INTEGER NOT NULL,
			finished_at    INTEGER,
			state          TEXT NOT NULL,
			destination    TEXT,
			snapshot_rows  INTEGER,
			history_rows   INTEGER,
			sentiment_rows INTEGER,
			price_rows     INTEGER,
			global_ok      INTEGER,
			skip_count     INTEGER,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS run_skips (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   TEXT NOT NULL REFERENCES runs(id),
			resource TEXT,
			item     TEXT,
			reason   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_skips_run ON run_skips(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores a run and its skips. Recording the same run id again
// replaces the earlier record.
func (r *SQLiteRecorder) RecordRun(rep *model.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !rep.FinishedAt.IsZero() {
		finished = rep.FinishedAt.UnixMilli()
	}
	globalOK := 0
	if rep.GlobalOK {
		globalOK = 1
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs
		(id, run_trigger, started_at, finished_at, state, destination,
		 snapshot_rows, history_rows, sentiment_rows, price_rows,
		 global_ok, skip_count, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.Trigger, rep.StartedAt.UnixMilli(), finished, string(rep.State), rep.Destination,
		rep.SnapshotRows, rep.HistoryRows, rep.SentimentRows, rep.PriceRows,
		globalOK, len(rep.Skips), rep.Err,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM run_skips WHERE run_id = ?`, rep.ID); err != nil {
		return fmt.Errorf("clear skips: %w", err)
	}
	for _, s := range rep.Skips {
		if _, err := tx.Exec(`INSERT INTO run_skips (run_id, resource, item, reason) VALUES (?,?,?,?)`,
			rep.ID, string(s.Kind), s.ID, s.Reason); err != nil {
			return fmt.Errorf("insert skip: %w", err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns the latest n runs, newest first, with their skips.
func (r *SQLiteRecorder) RecentRuns(n int) ([]model.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, run_trigger, started_at, finished_at, state, destination,
		snapshot_rows, history_rows, sentiment_rows, price_rows, global_ok, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []model.RunReport
	for rows.Next() {
		var (
			rep      model.RunReport
			started  int64
			finished sql.NullInt64
			state    string
			globalOK int
			errText  sql.NullString
		)
		if err := rows.Scan(&rep.ID, &rep.Trigger, &started, &finished, &state, &rep.Destination,
			&rep.SnapshotRows, &rep.HistoryRows, &rep.SentimentRows, &rep.PriceRows, &globalOK, &errText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rep.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			rep.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		rep.State = model.RunState(state)
		rep.GlobalOK = globalOK == 1
		rep.Err = errText.String
		runs = append(runs, rep)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		skips, err := r.skips(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Skips = skips
	}
	return runs, nil
}

func (r *SQLiteRecorder) skips(runID string) ([]model.Skip, error) {
	rows, err := r.db.Query(`SELECT resource, item, reason FROM run_skips WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query skips: %w", err)
	}
	defer rows.Close()

	var out []model.Skip
	for rows.Next() {
		var kind string
		var s model.Skip
		if err := rows.Scan(&kind, &s.ID, &s.Reason); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		s.Kind = model.ResourceKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
