package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
)

// Journal records finished runs and their per-document outcomes in SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunEntry is one run to be journaled.
type RunEntry struct {
	Report     entity.BatchReport
	Outcomes   []entity.ProcessingOutcome
	InputDir   string
	OutputPath string
}

// RunSummary is a journaled run as read back.
type RunSummary struct {
	RunID       string
	State       constants.BatchState
	InputDir    string
	OutputPath  string
	Total       int
	Succeeded   int
	Empty       int
	Failed      int
	Skipped     int
	Records     int
	Aborted     bool
	AbortReason string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// OutcomeRow is a journaled document outcome.
type OutcomeRow struct {
	Seq       int
	Path      string
	Status    constants.DocumentStatus
	ErrorKind common.ErrorKind
	Message   string
	Attempts  int
	Duration  time.Duration
	Records   [][]entity.Field
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, common.NewConfigError("journal path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}
	logger.Debug("journal.open", "path", path)
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			input_dir TEXT,
			output_path TEXT,
			total INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			empty INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			records INTEGER NOT NULL,
			aborted INTEGER NOT NULL,
			abort_reason TEXT,
			started_at TEXT,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			message TEXT,
			attempts INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			records_json TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun stores a run and its outcomes in one transaction. Re-recording a run id replaces it.
func (j *Journal) RecordRun(ctx context.Context, e RunEntry) error {
	r := e.Report
	if r.RunID == "" {
		return fmt.Errorf("%w: run id is required", common.ErrInvalidInput)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs(run_id, state, input_dir, output_path, total, succeeded, empty, failed, skipped, records, aborted, abort_reason, started_at, finished_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET state=excluded.state, input_dir=excluded.input_dir, output_path=excluded.output_path,
			total=excluded.total, succeeded=excluded.succeeded, empty=excluded.empty, failed=excluded.failed, skipped=excluded.skipped,
			records=excluded.records, aborted=excluded.aborted, abort_reason=excluded.abort_reason,
			started_at=excluded.started_at, finished_at=excluded.finished_at`,
		r.RunID, string(r.State), e.InputDir, e.OutputPath, r.Total, r.Succeeded, r.Empty, r.Failed, r.Skipped, r.Records,
		boolInt(r.Aborted), r.AbortReason, formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE run_id=?`, r.RunID); err != nil {
		return fmt.Errorf("clear outcomes %s: %w", r.RunID, err)
	}
	for _, o := range e.Outcomes {
		recs := make([][]entity.Field, 0, len(o.Records))
		for _, rec := range o.Records {
			recs = append(recs, rec.Fields())
		}
		recJSON, err := json.Marshal(recs)
		if err != nil {
			return fmt.Errorf("encode records of %s: %w", o.Document.Path, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO outcomes(run_id, seq, path, status, error_kind, message, attempts, duration_ms, records_json)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, o.Seq, o.Document.Path, string(o.Status), string(o.ErrorKind), o.Message, o.Attempts,
			o.Duration.Milliseconds(), string(recJSON))
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Document.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	j.logger.Info("journal.run.recorded", "run_id", r.RunID, "outcomes", len(e.Outcomes), "state", r.State)
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `SELECT run_id, state, input_dir, output_path, total, succeeded, empty, failed, skipped, records, aborted, abort_reason, started_at, finished_at
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s                 RunSummary
			state             string
			aborted           int
			started, finished string
		)
		if err := rows.Scan(&s.RunID, &state, &s.InputDir, &s.OutputPath, &s.Total, &s.Succeeded, &s.Empty, &s.Failed,
			&s.Skipped, &s.Records, &aborted, &s.AbortReason, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.State = constants.BatchState(state)
		s.Aborted = aborted != 0
		s.StartedAt = parseTime(started)
		s.FinishedAt = parseTime(finished)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Outcomes returns the journaled outcomes of a run in discovery order.
func (j *Journal) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, path, status, error_kind, message, attempts, duration_ms, records_json
		FROM outcomes WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var (
			o            OutcomeRow
			status, kind string
			durMs        int64
			recJSON      string
		)
		if err := rows.Scan(&o.Seq, &o.Path, &status, &kind, &o.Message, &o.Attempts, &durMs, &recJSON); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = constants.DocumentStatus(status)
		o.ErrorKind = common.ErrorKind(kind)
		o.Duration = time.Duration(durMs) * time.Millisecond
		if recJSON != "" {
			if err := json.Unmarshal([]byte(recJSON), &o.Records); err != nil {
				return nil, fmt.Errorf("decode records of %s: %w", o.Path, err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
