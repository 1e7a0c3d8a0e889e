// Package storage keeps a local history of vxh runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/report"
)

// History wraps the run history database.
type History struct {
	db *sql.DB
}

// selectRunFields is the column list for run queries.
const selectRunFields = `run_id, host, generated_at, verdict,
	healthy, unhealthy, warnings, precheck_state`

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		-- One row per run
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			generated_at INTEGER NOT NULL,
			verdict TEXT NOT NULL,
			healthy INTEGER NOT NULL,
			unhealthy INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			precheck_state TEXT,
			report_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);

		-- Entity records of each run
		CREATE TABLE IF NOT EXISTS entities (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			label TEXT NOT NULL,
			healthy INTEGER NOT NULL,
			source TEXT NOT NULL,
			host TEXT,
			PRIMARY KEY (run_id, kind, id)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Run is the summary row of one stored run.
type Run struct {
	RunID         string         `json:"run_id"`
	Host          string         `json:"host"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Verdict       health.Verdict `json:"verdict"`
	Healthy       int            `json:"healthy"`
	Unhealthy     int            `json:"unhealthy"`
	Warnings      int            `json:"warnings"`
	PrecheckState string         `json:"precheck_state,omitempty"`
}

// Summarize returns the summary row of a report.
func Summarize(r *report.Report) Run {
	run := Run{
		RunID:       r.RunID,
		Host:        r.Host,
		GeneratedAt: r.GeneratedAt,
		Verdict:     r.Verdict,
	}
	if r.Health != nil {
		run.Healthy, run.Unhealthy = r.Health.Counts()
		run.Warnings = len(r.Health.Warnings())
	}
	if r.Precheck != nil {
		run.PrecheckState = string(r.Precheck.Outcome.State)
	}
	return run
}

// SaveRun stores a report and its entity records in one transaction.
func (h *History) SaveRun(ctx context.Context, r *report.Report) error {
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report %s: %w", r.RunID, err)
	}

	run := Summarize(r)
	var records []health.Record
	if r.Health != nil {
		records = r.Health.Records()
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, host, generated_at, verdict,
			healthy, unhealthy, warnings, precheck_state, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Host, run.GeneratedAt.UnixMilli(), string(run.Verdict),
		run.Healthy, run.Unhealthy, run.Warnings, nullableStringValue(run.PrecheckState), string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (run_id, kind, id, label, healthy, source, host)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			r.RunID, string(rec.Kind), rec.ID, rec.Label, boolToInt(rec.Healthy),
			rec.Source, nullableStringValue(rec.Host))
		if err != nil {
			return fmt.Errorf("inserting %s for run %s: %w", rec.Key(), r.RunID, err)
		}
	}

	return tx.Commit()
}

// RunFilter narrows ListRuns. Zero values do not filter.
type RunFilter struct {
	Since time.Time
	Host  string
	Limit int
}

// ListRuns returns stored runs, newest first.
func (h *History) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	query := `SELECT ` + selectRunFields + ` FROM runs WHERE 1=1`
	var args []any

	if !f.Since.IsZero() {
		query += " AND generated_at >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	if f.Host != "" {
		query += " AND host = ?"
		args = append(args, f.Host)
	}
	query += " ORDER BY generated_at DESC, run_id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run, or nil if it does not exist.
func (h *History) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+selectRunFields+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// LoadReport returns the stored JSON document of a run.
func (h *History) LoadReport(ctx context.Context, runID string) (json.RawMessage, error) {
	var doc string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return json.RawMessage(doc), nil
}

// Entities returns the stored entity records of a run in insertion order.
func (h *History) Entities(ctx context.Context, runID string) ([]health.Record, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT kind, id, label, healthy, source, host
		FROM entities WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var records []health.Record
	for rows.Next() {
		var (
			rec     health.Record
			kind    string
			healthy int
			host    sql.NullString
		)
		if err := rows.Scan(&kind, &rec.ID, &rec.Label, &healthy, &rec.Source, &host); err != nil {
			return nil, err
		}
		rec.Kind = health.EntityKind(kind)
		rec.Healthy = healthy != 0
		rec.Host = host.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored runs.
func (h *History) Count(ctx context.Context) (int, error) {
	var count int
	err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// Prune deletes runs generated before cutoff and returns how many went.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ms := cutoff.UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM entities WHERE run_id IN (SELECT run_id FROM runs WHERE generated_at < ?)`, ms); err != nil {
		return 0, fmt.Errorf("pruning entities: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE generated_at < ?`, ms)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run           Run
		generatedAt   int64
		verdict       string
		precheckState sql.NullString
	)
	err := s.Scan(
		&run.RunID, &run.Host, &generatedAt, &verdict,
		&run.Healthy, &run.Unhealthy, &run.Warnings, &precheckState,
	)
	if err != nil {
		return nil, err
	}
	run.GeneratedAt = time.UnixMilli(generatedAt).UTC()
	run.Verdict = health.Verdict(verdict)
	run.PrecheckState = precheckState.String
	return &run, nil
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
