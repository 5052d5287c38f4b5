// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/projdocs/pkg/types"
)

func sampleEntry(id string, status types.DownloadStatus) types.ManifestEntry {
	return types.ManifestEntry{
		Country:      "Kenya",
		ProjectID:    id,
		ProjectTitle: "Water, Sanitation",
		DocType:      types.DocPID,
		DocDate:      "2019-05-21",
		ReportNumber: "PIDC1",
		Language:     "English",
		SourceURL:    "https://documents.worldbank.org/x",
		FileURL:      "https://documents.worldbank.org/x.pdf",
		SavedPath:    "downloads/Kenya/" + id + "/PID/a.pdf",
		Status:       status,
		SHA256:       "abc",
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestManifest_HeaderOnceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "manifest.csv")

	m, err := OpenManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Append(sampleEntry("P1", types.StatusDownloaded)))
	require.NoError(t, m.Close())

	m, err = OpenManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Append(sampleEntry("P2", types.StatusSkippedExisting), sampleEntry("P3", types.StatusFailed)))
	require.NoError(t, m.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, types.ManifestHeader, rows[0])
	assert.Equal(t, "P1", rows[1][1])
	assert.Equal(t, "Water, Sanitation", rows[1][2])
	assert.Equal(t, "skipped_existing", rows[2][10])
	assert.Equal(t, "failed", rows[3][10])
}

func TestManifest_HeaderWrittenToEmptyExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := OpenManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, types.ManifestHeader, rows[0])
}

func TestManifest_AppendIsFlushed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")
	m, err := OpenManifest(path)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Append(sampleEntry("P1", types.StatusDownloaded)))
	// Readable before Close.
	assert.Len(t, readCSV(t, path), 2)
}

func TestWriteSummary_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	summaries := []types.ProjectSummary{
		{Country: "Kenya", ProjectID: "P1", ProjectTitle: "Water", HasPID: true, PIDCount: 2,
			PIDPaths: []string{"a.pdf", "b.pdf"}},
		{Country: "Chile", ProjectID: "P2", ProjectTitle: "Ports"},
	}
	require.NoError(t, WriteSummary(path, summaries))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, types.SummaryHeader, rows[0])
	assert.Equal(t, []string{"Kenya", "P1", "Water", "True", "False", "2", "0", "a.pdf;b.pdf", ""}, rows[1])
	assert.Equal(t, []string{"Chile", "P2", "Ports", "False", "False", "0", "0", "", ""}, rows[2])

	tmps, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".summary-*.tmp"))
	assert.Empty(t, tmps)
}

func TestCSV_Sink(t *testing.T) {
	dir := t.TempDir()
	sink, err := OpenCSV(filepath.Join(dir, "manifest.csv"), filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Append(ctx, sampleEntry("P1", types.StatusDownloaded)))
	require.NoError(t, sink.WriteSummaries(ctx, []types.ProjectSummary{{ProjectID: "P1"}}))
	require.NoError(t, sink.Close())

	assert.Len(t, readCSV(t, filepath.Join(dir, "manifest.csv")), 2)
	assert.Len(t, readCSV(t, filepath.Join(dir, "summary.csv")), 2)
}

type recordingSink struct {
	entries int
	err     error
	closed  bool
}

func (r *recordingSink) Append(_ context.Context, entries ...types.ManifestEntry) error {
	r.entries += len(entries)
	return r.err
}

func (r *recordingSink) WriteSummaries(context.Context, []types.ProjectSummary) error { return r.err }

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingSink{err: boom}, &recordingSink{}
	m := Multi{a, b}

	err := m.Append(context.Background(), sampleEntry("P1", types.StatusDownloaded))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.entries)
	assert.Equal(t, 1, b.entries, "second sink still receives entries")

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestIndex_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "db", "ledger.db"))
	require.NoError(t, err)
	defer idx.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg := types.RunConfig{ProjectsFile: "projects.csv", Selection: types.SelectionConfig{Languages: types.LanguagesEnglish}}
	run, err := idx.BeginRun(ctx, "run-1", started, cfg)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID())

	require.NoError(t, run.Append(ctx, sampleEntry("P1", types.StatusDownloaded), sampleEntry("P2", types.StatusFailed)))
	summaries := []types.ProjectSummary{
		{ProjectID: "P2", Country: "Chile"},
		{ProjectID: "P1", Country: "Kenya", HasPID: true, PIDCount: 1, PIDPaths: []string{"a.pdf"}},
	}
	require.NoError(t, run.WriteSummaries(ctx, summaries))
	// Rewriting replaces rather than duplicates.
	require.NoError(t, run.WriteSummaries(ctx, summaries))

	counters := types.RunCounters{ProjectsProcessed: 2, Downloaded: 1, Failed: 1}
	failed := []types.FailedProject{{ProjectID: "P3", Error: "panic"}}
	require.NoError(t, idx.FinishRun(ctx, "run-1", started.Add(time.Minute), counters, failed))

	entries, err := idx.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, sampleEntry("P1", types.StatusDownloaded), entries[0])
	assert.Equal(t, types.StatusFailed, entries[1].Status)

	got, err := idx.Summaries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].ProjectID)
	assert.True(t, got[0].HasPID)
	assert.Equal(t, []string{"a.pdf"}, got[0].PIDPaths)
	assert.Empty(t, got[1].PIDPaths)

	runs, err := idx.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, started, runs[0].StartedAt)
	assert.Equal(t, started.Add(time.Minute), runs[0].FinishedAt)
	assert.Equal(t, counters, runs[0].Counters)
	assert.Equal(t, failed, runs[0].FailedProjects)
	assert.Equal(t, "projects.csv", runs[0].Config.ProjectsFile)
}

func TestIndex_RunsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer idx.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_, err := idx.BeginRun(ctx, id, base.Add(time.Duration(i)*time.Hour), types.RunConfig{})
		require.NoError(t, err)
	}

	runs, err := idx.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())

	all, err := idx.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIndex_FinishUnknownRun(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer idx.Close()

	err = idx.FinishRun(context.Background(), "missing", time.Now(), types.RunCounters{}, nil)
	assert.Error(t, err)
}

func TestReport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	r := RunReport{
		RunID:      "run-1",
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Config: types.RunConfig{
			ProjectsFile: "projects.csv",
			Download:     types.DownloadConfig{OutDir: "downloads", DownloadDelay: 2 * time.Second},
		},
		Counters:       types.RunCounters{ProjectsProcessed: 3, Downloaded: 2, MissingURL: 1},
		FailedProjects: []types.FailedProject{{ProjectID: "P9", Error: "boom"}},
	}
	require.NoError(t, WriteReport(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id: run-1")
	assert.Contains(t, string(data), "missing_url: 1")

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}
