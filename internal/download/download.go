// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches selected documents to their storage paths exactly
// once, hashing what it writes.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdiddy/projdocs/pkg/types"
)

func init() {
	// pdfcpu otherwise creates a config directory under the user's home.
	api.DisableConfigDir()
}

// Mirror receives a copy of every newly downloaded file.
type Mirror interface {
	Put(ctx context.Context, localPath, objectName string) error
}

// Result is the outcome of one Download call.
type Result struct {
	OK     bool
	Status types.DownloadStatus
	SHA256 string
}

// Downloader writes documents under cfg.OutDir.
type Downloader struct {
	client    *http.Client
	cfg       types.DownloadConfig
	mirror    Mirror
	logger    *slog.Logger
	transfers int
}

// New returns a Downloader. mirror may be nil.
func New(client *http.Client, cfg types.DownloadConfig, mirror Mirror, logger *slog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{client: client, cfg: cfg, mirror: mirror, logger: logger}
}

// Download fetches sourceURL to destPath.
//
// An existing non-empty destPath is never re-fetched: the result is
// skipped_existing with the hash of the file on disk. In dry-run mode nothing is written and
// no request is made. Otherwise the body is streamed to a temporary file in
// the destination directory and renamed into place, so destPath only ever
// exists as a complete file.
func (d *Downloader) Download(ctx context.Context, sourceURL, destPath string) Result {
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		sum, err := hashFile(destPath)
		if err != nil {
			d.logger.Warn("hashing existing file", "path", destPath, "error", err)
		}
		return Result{OK: true, Status: types.StatusSkippedExisting, SHA256: sum}
	}

	if d.cfg.DryRun {
		return Result{OK: true, Status: types.StatusDryRun}
	}

	if err := d.pause(ctx); err != nil {
		return Result{Status: types.StatusFailed}
	}
	d.transfers++

	if err := d.fetch(ctx, sourceURL, destPath); err != nil {
		d.logger.Error("download failed", "url", sourceURL, "path", destPath, "error", err)
		return Result{Status: types.StatusFailed}
	}

	sum, err := hashFile(destPath)
	if err != nil {
		d.logger.Error("hashing download", "path", destPath, "error", err)
		return Result{Status: types.StatusFailed}
	}

	if d.mirror != nil {
		d.mirrorFile(ctx, destPath)
	}
	return Result{OK: true, Status: types.StatusDownloaded, SHA256: sum}
}

// pause applies DownloadDelay between consecutive transfers.
func (d *Downloader) pause(ctx context.Context) error {
	if d.transfers == 0 || d.cfg.DownloadDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.cfg.DownloadDelay):
		return nil
	}
}

// fetch streams url to a temp file next to destPath and renames it into place.
func (d *Downloader) fetch(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if n == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("empty response body from %s", url)
	}

	if d.cfg.VerifyPDF {
		if err := verifyPDF(tmpPath); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (d *Downloader) mirrorFile(ctx context.Context, path string) {
	name, err := filepath.Rel(d.cfg.OutDir, path)
	if err != nil {
		name = filepath.Base(path)
	}
	if err := d.mirror.Put(ctx, path, filepath.ToSlash(name)); err != nil {
		d.logger.Warn("mirror upload failed", "path", path, "error", err)
	}
}

// verifyPDF rejects files pdfcpu cannot read a page count from.
func verifyPDF(path string) error {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return fmt.Errorf("not a readable PDF: %w", err)
	}
	if pages == 0 {
		return fmt.Errorf("not a readable PDF: no pages")
	}
	return nil
}

// hashFile returns the hex SHA-256 of the file at path.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
