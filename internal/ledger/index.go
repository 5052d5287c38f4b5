// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/projdocs/pkg/types"
)

// Index is a SQLite history of runs, their manifest entries and summaries.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the database at path and its schema.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	x := &Index{db: db}
	if err := x.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return x, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			config TEXT,
			counters TEXT,
			failed_projects TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			country TEXT,
			project_id TEXT NOT NULL,
			project_title TEXT,
			doc_type TEXT,
			doc_date TEXT,
			repnb TEXT,
			language TEXT,
			source_url TEXT,
			pdf_url TEXT,
			saved_path TEXT,
			status TEXT NOT NULL,
			sha256 TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_run_id ON entries(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_project_id ON entries(project_id)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			run_id TEXT NOT NULL REFERENCES runs(id),
			project_id TEXT NOT NULL,
			country TEXT,
			project_title TEXT,
			has_pid INTEGER,
			has_pad INTEGER,
			pid_count INTEGER,
			pad_count INTEGER,
			pid_paths TEXT,
			pad_paths TEXT,
			PRIMARY KEY (run_id, project_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := x.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run and returns a Sink that files the
// run's entries and summaries under runID.
func (x *Index) BeginRun(ctx context.Context, runID string, startedAt time.Time, cfg types.RunConfig) (*RunSink, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	_, err = x.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, config) VALUES (?, ?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339Nano), string(cfgJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run %s: %w", runID, err)
	}
	return &RunSink{x: x, runID: runID}, nil
}

// FinishRun stores the end time and outcome of runID.
func (x *Index) FinishRun(ctx context.Context, runID string, finishedAt time.Time, counters types.RunCounters, failed []types.FailedProject) error {
	countersJSON, _ := json.Marshal(counters)
	failedJSON, _ := json.Marshal(failed)
	res, err := x.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, counters = ?, failed_projects = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), string(countersJSON), string(failedJSON), runID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Run is one row of the run history.
type Run struct {
	ID             string                `json:"id" yaml:"id"`
	StartedAt      time.Time             `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time             `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Config         types.RunConfig       `json:"config" yaml:"config"`
	Counters       types.RunCounters     `json:"counters" yaml:"counters"`
	FailedProjects []types.FailedProject `json:"failed_projects,omitempty" yaml:"failed_projects,omitempty"`
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns all runs.
func (x *Index) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, config, counters, failed_projects
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                           Run
			started                     string
			finished, cfg, cnt, failure sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &cfg, &cnt, &failure); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		if cfg.Valid {
			json.Unmarshal([]byte(cfg.String), &r.Config)
		}
		if cnt.Valid {
			json.Unmarshal([]byte(cnt.String), &r.Counters)
		}
		if failure.Valid {
			json.Unmarshal([]byte(failure.String), &r.FailedProjects)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the manifest entries recorded for runID in insertion order.
func (x *Index) Entries(ctx context.Context, runID string) ([]types.ManifestEntry, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT country, project_id, project_title, doc_type, doc_date, repnb,
			language, source_url, pdf_url, saved_path, status, sha256
		 FROM entries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []types.ManifestEntry
	for rows.Next() {
		var (
			e       types.ManifestEntry
			docType string
			status  string
		)
		if err := rows.Scan(&e.Country, &e.ProjectID, &e.ProjectTitle, &docType, &e.DocDate,
			&e.ReportNumber, &e.Language, &e.SourceURL, &e.FileURL, &e.SavedPath, &status, &e.SHA256); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.DocType = types.DocType(docType)
		e.Status = types.DownloadStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summaries returns the project summaries recorded for runID ordered by
// project ID.
func (x *Index) Summaries(ctx context.Context, runID string) ([]types.ProjectSummary, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT country, project_id, project_title, has_pid, has_pad,
			pid_count, pad_count, pid_paths, pad_paths
		 FROM summaries WHERE run_id = ? ORDER BY project_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var out []types.ProjectSummary
	for rows.Next() {
		var (
			s                  types.ProjectSummary
			pidPaths, padPaths string
		)
		if err := rows.Scan(&s.Country, &s.ProjectID, &s.ProjectTitle, &s.HasPID, &s.HasPAD,
			&s.PIDCount, &s.PADCount, &pidPaths, &padPaths); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		json.Unmarshal([]byte(pidPaths), &s.PIDPaths)
		json.Unmarshal([]byte(padPaths), &s.PADPaths)
		out = append(out, s)
	}
	return out, rows.Err()
}

// RunSink writes one run's records into the Index.
type RunSink struct {
	x     *Index
	runID string
}

// RunID returns the run this sink records.
func (r *RunSink) RunID() string { return r.runID }

// Append implements Sink.
func (r *RunSink) Append(ctx context.Context, entries ...types.ManifestEntry) error {
	tx, err := r.x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, country, project_id, project_title, doc_type, doc_date,
			repnb, language, source_url, pdf_url, saved_path, status, sha256)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, r.runID,
			e.Country, e.ProjectID, e.ProjectTitle, string(e.DocType), e.DocDate,
			e.ReportNumber, e.Language, e.SourceURL, e.FileURL, e.SavedPath,
			string(e.Status), e.SHA256,
		)
		if err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.SavedPath, err)
		}
	}
	return tx.Commit()
}

// WriteSummaries implements Sink. Summaries already stored for the run are
// replaced.
func (r *RunSink) WriteSummaries(ctx context.Context, summaries []types.ProjectSummary) error {
	tx, err := r.x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE run_id = ?`, r.runID); err != nil {
		return fmt.Errorf("deleting old summaries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO summaries (run_id, project_id, country, project_title, has_pid, has_pad,
			pid_count, pad_count, pid_paths, pad_paths)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, project_id) DO UPDATE SET
			country=excluded.country, project_title=excluded.project_title,
			has_pid=excluded.has_pid, has_pad=excluded.has_pad,
			pid_count=excluded.pid_count, pad_count=excluded.pad_count,
			pid_paths=excluded.pid_paths, pad_paths=excluded.pad_paths`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range summaries {
		pidJSON, _ := json.Marshal(nonNil(s.PIDPaths))
		padJSON, _ := json.Marshal(nonNil(s.PADPaths))
		_, err := stmt.ExecContext(ctx, r.runID, s.ProjectID, s.Country, s.ProjectTitle,
			s.HasPID, s.HasPAD, s.PIDCount, s.PADCount, string(pidJSON), string(padJSON))
		if err != nil {
			return fmt.Errorf("inserting summary %s: %w", s.ProjectID, err)
		}
	}
	return tx.Commit()
}

// Close implements Sink. The Index itself stays open.
func (r *RunSink) Close() error { return nil }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
