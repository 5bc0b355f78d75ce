package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"

	"waterfall-mcp/internal/span"
	"waterfall-mcp/internal/waterfall"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		units TEXT NOT NULL,
		total_time REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS spans (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		parent_id TEXT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS buckets (
		span_id TEXT NOT NULL REFERENCES spans(id),
		type TEXT NOT NULL,
		kind TEXT NOT NULL,
		duration REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stats (
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		calls INTEGER NOT NULL,
		total REAL NOT NULL,
		avg REAL NOT NULL,
		min REAL NOT NULL,
		min_name TEXT,
		max REAL NOT NULL,
		max_name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		time REAL NOT NULL
	)`,
}

// SQLiteWriter stores finalized waterfalls in a SQLite database. Each
// waterfall is written as one run.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path and ensures the schema.
func NewSQLiteWriter(ctx context.Context, path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteWriter{db: db}, nil
}

// DB exposes the underlying database for queries.
func (w *SQLiteWriter) DB() *sql.DB {
	return w.db
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

// Write stores gui in a single transaction and returns the new run id.
func (w *SQLiteWriter) Write(ctx context.Context, source string, gui *waterfall.GUI) (string, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runID := xid.New().String()
	total := 0.0
	if gui.Stats != nil {
		total = gui.Stats.TotalExecutionTime
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, units, total_time, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, source, gui.Units, total, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	rw := &rowWriter{ctx: ctx, tx: tx, runID: runID}
	if err := rw.writeRows(gui.Rows, ""); err != nil {
		return "", err
	}

	if gui.Stats != nil {
		for _, st := range gui.Stats.Spans {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stats (run_id, name, calls, total, avg, min, min_name, max, max_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, st.Name, st.Calls, st.TotalDuration, st.AvgDuration, st.Min.Duration, st.Min.Name, st.Max.Duration, st.Max.Name,
			); err != nil {
				return "", fmt.Errorf("failed to insert stats for %s: %w", st.Name, err)
			}
		}
	}

	for _, ev := range gui.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (run_id, name, time) VALUES (?, ?, ?)`,
			runID, ev.Name, ev.Time,
		); err != nil {
			return "", fmt.Errorf("failed to insert event %s: %w", ev.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

type rowWriter struct {
	ctx   context.Context
	tx    *sql.Tx
	runID string
}

func (rw *rowWriter) writeRows(rows []*span.Row, parentID string) error {
	for _, r := range rows {
		id := xid.New().String()
		var parent any
		if parentID != "" {
			parent = parentID
		}

		if _, err := rw.tx.ExecContext(rw.ctx,
			`INSERT INTO spans (id, run_id, parent_id, name, type, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, rw.runID, parent, r.Name, r.TypeName(), r.StartTime, r.EndTime,
		); err != nil {
			return fmt.Errorf("failed to insert span %s: %w", r.Name, err)
		}

		for _, b := range r.Durations {
			if _, err := rw.tx.ExecContext(rw.ctx,
				`INSERT INTO buckets (span_id, type, kind, duration) VALUES (?, ?, ?, ?)`,
				id, b.Type, string(b.Kind), b.Duration,
			); err != nil {
				return fmt.Errorf("failed to insert bucket %s of %s: %w", b.Type, r.Name, err)
			}
		}

		if err := rw.writeRows(r.Details, id); err != nil {
			return err
		}
	}
	return nil
}
