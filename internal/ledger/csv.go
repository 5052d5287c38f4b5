// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records what a run did: an append-only manifest of every
// attempted download, a per-project summary, an optional SQLite index of runs
// and an optional YAML run report.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/projdocs/pkg/types"
)

// ManifestWriter appends rows to manifest.csv. Every Append is flushed, so
// an interrupted run leaves a manifest covering all completed downloads.
type ManifestWriter struct {
	f *os.File
	w *csv.Writer
}

// OpenManifest opens path for appending, creating parent directories. The
// header is written only when the file is new or empty.
func OpenManifest(path string) (*ManifestWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat manifest %s: %w", path, err)
	}

	m := &ManifestWriter{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := m.write(types.ManifestHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return m, nil
}

// Append writes entries and flushes them to disk.
func (m *ManifestWriter) Append(entries ...types.ManifestEntry) error {
	for _, e := range entries {
		if err := m.w.Write(e.Record()); err != nil {
			return fmt.Errorf("writing manifest row: %w", err)
		}
	}
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		return fmt.Errorf("flushing manifest: %w", err)
	}
	return nil
}

func (m *ManifestWriter) write(record []string) error {
	if err := m.w.Write(record); err != nil {
		return fmt.Errorf("writing manifest header: %w", err)
	}
	m.w.Flush()
	return m.w.Error()
}

// Close flushes and closes the file.
func (m *ManifestWriter) Close() error {
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		m.f.Close()
		return err
	}
	return m.f.Close()
}

// WriteSummary replaces path with one row per project. The file is written
// to a temp file in the same directory and renamed into place.
func WriteSummary(path string, summaries []types.ProjectSummary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(types.SummaryHeader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing summary header: %w", err)
	}
	for _, s := range summaries {
		if err := w.Write(s.Record()); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing summary row %s: %w", s.ProjectID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing summary: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming summary: %w", err)
	}
	return nil
}

// CSV is the file-backed Sink: manifest rows go to an open ManifestWriter and
// summaries to SummaryPath.
type CSV struct {
	manifest    *ManifestWriter
	summaryPath string
}

// OpenCSV opens the manifest for appending.
func OpenCSV(manifestPath, summaryPath string) (*CSV, error) {
	m, err := OpenManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return &CSV{manifest: m, summaryPath: summaryPath}, nil
}

// Append implements Sink.
func (c *CSV) Append(_ context.Context, entries ...types.ManifestEntry) error {
	return c.manifest.Append(entries...)
}

// WriteSummaries implements Sink.
func (c *CSV) WriteSummaries(_ context.Context, summaries []types.ProjectSummary) error {
	return WriteSummary(c.summaryPath, summaries)
}

// Close implements Sink.
func (c *CSV) Close() error {
	return c.manifest.Close()
}
