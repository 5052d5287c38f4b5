// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/projdocs/pkg/types"
)

var pdfBody = []byte("%PDF-1.4 fake body")

func sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func pdfServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeMirror struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (m *fakeMirror) Put(_ context.Context, localPath, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	m.names = append(m.names, objectName)
	return m.err
}

func TestDownload_WritesFileAndHash(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	dest := filepath.Join(dir, "Kenya", "P1_x", "PID", "doc.pdf")

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, nil, nil)
	res := d.Download(context.Background(), srv.URL+"/doc.pdf", dest)

	assert.True(t, res.OK)
	assert.Equal(t, types.StatusDownloaded, res.Status)
	assert.Equal(t, sum(pdfBody), res.SHA256)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, data)

	tmps, _ := filepath.Glob(filepath.Join(filepath.Dir(dest), ".download-*.tmp"))
	assert.Empty(t, tmps, "temp files left behind")
}

func TestDownload_SkipsExisting(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")
	existing := []byte("already here")
	require.NoError(t, os.WriteFile(dest, existing, 0o644))
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(dest, old, old))

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, nil, nil)
	res := d.Download(context.Background(), srv.URL, dest)

	assert.True(t, res.OK)
	assert.Equal(t, types.StatusSkippedExisting, res.Status)
	assert.Equal(t, sum(existing), res.SHA256)
	assert.Zero(t, atomic.LoadInt32(&calls), "no request for an existing file")

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "mtime changed")
}

func TestDownload_SkipsExistingEvenInDryRun(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(dest, pdfBody, 0o644))

	d := New(nil, types.DownloadConfig{OutDir: dir, DryRun: true}, nil, nil)
	res := d.Download(context.Background(), "http://127.0.0.1:1/never", dest)
	assert.Equal(t, types.StatusSkippedExisting, res.Status)
}

func TestDownload_DryRunWritesNothing(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	dest := filepath.Join(dir, "Kenya", "doc.pdf")

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir, DryRun: true}, nil, nil)
	res := d.Download(context.Background(), srv.URL, dest)

	assert.True(t, res.OK)
	assert.Equal(t, types.StatusDryRun, res.Status)
	assert.Empty(t, res.SHA256)
	assert.Zero(t, atomic.LoadInt32(&calls))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry run created files")
}

func TestDownload_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	dir := t.TempDir()
	dest := filepath.Join(dir, "sub", "doc.pdf")

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, nil, nil)
	res := d.Download(context.Background(), srv.URL, dest)

	assert.False(t, res.OK)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Empty(t, res.SHA256)
	_, err := os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDownload_EmptyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, nil, nil)
	res := d.Download(context.Background(), srv.URL, dest)

	assert.False(t, res.OK)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Empty(t, res.SHA256)
	_, err := os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file left behind")
}

func TestDownload_ReplacesEmptyExistingFile(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(dest, nil, 0o644))

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, nil, nil)
	res := d.Download(context.Background(), srv.URL+"/doc.pdf", dest)

	assert.Equal(t, types.StatusDownloaded, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestDownload_TransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := New(&http.Client{Timeout: time.Second}, types.DownloadConfig{OutDir: t.TempDir()}, nil, nil)
	res := d.Download(context.Background(), url, filepath.Join(t.TempDir(), "doc.pdf"))
	assert.Equal(t, types.StatusFailed, res.Status)
}

func TestDownload_VerifyPDFRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Document not available</body></html>"))
	}))
	defer srv.Close()
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir, VerifyPDF: true}, nil, nil)
	res := d.Download(context.Background(), srv.URL, dest)

	assert.Equal(t, types.StatusFailed, res.Status)
	_, err := os.Stat(dest)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	tmps, _ := filepath.Glob(filepath.Join(dir, ".download-*.tmp"))
	assert.Empty(t, tmps)
}

func TestDownload_MirrorsNewFilesOnly(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	dest := filepath.Join(dir, "Kenya", "P1", "PAD", "doc.pdf")
	m := &fakeMirror{}

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, m, nil)
	res := d.Download(context.Background(), srv.URL, dest)
	require.Equal(t, types.StatusDownloaded, res.Status)

	res = d.Download(context.Background(), srv.URL, dest)
	require.Equal(t, types.StatusSkippedExisting, res.Status)

	assert.Equal(t, []string{"Kenya/P1/PAD/doc.pdf"}, m.names)
}

func TestDownload_MirrorErrorDoesNotFail(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	m := &fakeMirror{err: errors.New("bucket unavailable")}

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir}, m, nil)
	res := d.Download(context.Background(), srv.URL, filepath.Join(dir, "doc.pdf"))
	assert.True(t, res.OK)
	assert.Equal(t, types.StatusDownloaded, res.Status)
}

func TestDownload_DelayBetweenTransfers(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()
	delay := 50 * time.Millisecond

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir, DownloadDelay: delay}, nil, nil)
	start := time.Now()
	d.Download(context.Background(), srv.URL, filepath.Join(dir, "a.pdf"))
	first := time.Since(start)
	d.Download(context.Background(), srv.URL, filepath.Join(dir, "b.pdf"))
	total := time.Since(start)

	assert.Less(t, first, delay, "first transfer should not wait")
	assert.GreaterOrEqual(t, total, delay)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDownload_CancelledDuringDelay(t *testing.T) {
	var calls int32
	srv := pdfServer(t, &calls)
	dir := t.TempDir()

	d := New(srv.Client(), types.DownloadConfig{OutDir: dir, DownloadDelay: time.Minute}, nil, nil)
	d.Download(context.Background(), srv.URL, filepath.Join(dir, "a.pdf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Download(ctx, srv.URL, filepath.Join(dir, "b.pdf"))
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
