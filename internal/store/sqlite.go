package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/ossched/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: SQLite has a single writer, CPUs record concurrently, and
	// every ":memory:" connection would otherwise be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Recording ---

func (s *SQLiteStore) BeginRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, policy, max_priority, cpus, time_slice, processes, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Policy), run.MaxPriority, run.CPUs, run.TimeSlice, run.Processes,
		run.StartedAt.UTC().Format(timeFormat),
	)
	return err
}

func (s *SQLiteStore) RecordDispatch(ctx context.Context, runID string, d model.Dispatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (run_id, seq, cpu, pid, priority, start, ran, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, d.Seq, d.CPU, d.PID, d.Priority, d.Start, d.Ran, boolToInt(d.Finished),
	)
	if err != nil {
		return fmt.Errorf("record dispatch %d of %s: %w", d.Seq, runID, err)
	}
	return nil
}

// FinishRun stores the final counters of a run. It returns an error if the
// run was never begun.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID)

	var completedAt *string
	if run.CompletedAt != nil {
		t := run.CompletedAt.UTC().Format(timeFormat)
		completedAt = &t
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET clock = ?, dispatches = ?, replenishments = ?, mean_wait = ?, stddev_wait = ?, completed_at = ?
		 WHERE id = ?`,
		run.Clock, run.Dispatches, int64(run.Replenishments), run.MeanWait, run.StdDevWait, completedAt, run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// --- Queries ---

const runColumns = `id, policy, max_priority, cpus, time_slice, processes, clock, dispatches,
	replenishments, mean_wait, stddev_wait, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var policy, startedAt string
	var completedAt sql.NullString
	var replenishments int64

	if err := row.Scan(&run.ID, &policy, &run.MaxPriority, &run.CPUs, &run.TimeSlice, &run.Processes,
		&run.Clock, &run.Dispatches, &replenishments, &run.MeanWait, &run.StdDevWait,
		&startedAt, &completedAt); err != nil {
		return nil, err
	}
	run.Policy = model.Policy(policy)
	run.Replenishments = uint64(replenishments)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		run.CompletedAt = &t
	}
	return &run, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first, along with the total matching count.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Policy != "" {
		where = " WHERE policy = ?"
		args = append(args, opts.Policy)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs`+where+` ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// ListDispatches returns the trace of a run in dispatch order.
func (s *SQLiteStore) ListDispatches(ctx context.Context, runID string) ([]model.Dispatch, error) {
	s.logger.Debug("sql", "op", "list", "table", "dispatches", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, cpu, pid, priority, start, ran, finished
		 FROM dispatches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Dispatch
	for rows.Next() {
		var d model.Dispatch
		var finished int
		if err := rows.Scan(&d.Seq, &d.CPU, &d.PID, &d.Priority, &d.Start, &d.Ran, &finished); err != nil {
			return nil, err
		}
		d.Finished = finished != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its dispatches.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
