// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strconv"
	"strings"
)

// DownloadStatus records the outcome of one download attempt.
type DownloadStatus string

const (
	StatusDownloaded      DownloadStatus = "downloaded"
	StatusSkippedExisting DownloadStatus = "skipped_existing"
	StatusDryRun          DownloadStatus = "dry_run"
	StatusFailed          DownloadStatus = "failed"
)

// ManifestHeader is the column order of manifest.csv.
var ManifestHeader = []string{
	"country", "project_id", "project_title", "doc_type", "doc_date",
	"repnb", "language", "source_url", "pdf_url", "saved_path", "status", "sha256",
}

// ManifestEntry is one audit row per attempted download.
type ManifestEntry struct {
	Country      string         `json:"country" yaml:"country"`
	ProjectID    string         `json:"project_id" yaml:"project_id"`
	ProjectTitle string         `json:"project_title" yaml:"project_title"`
	DocType      DocType        `json:"doc_type" yaml:"doc_type"`
	DocDate      string         `json:"doc_date" yaml:"doc_date"`
	ReportNumber string         `json:"repnb" yaml:"repnb"`
	Language     string         `json:"language" yaml:"language"`
	SourceURL    string         `json:"source_url" yaml:"source_url"`
	FileURL      string         `json:"pdf_url" yaml:"pdf_url"`
	SavedPath    string         `json:"saved_path" yaml:"saved_path"`
	Status       DownloadStatus `json:"status" yaml:"status"`
	SHA256       string         `json:"sha256" yaml:"sha256"`
}

// Record returns the entry as a CSV row in ManifestHeader order.
func (e ManifestEntry) Record() []string {
	return []string{
		e.Country, e.ProjectID, e.ProjectTitle, string(e.DocType), e.DocDate,
		e.ReportNumber, e.Language, e.SourceURL, e.FileURL, e.SavedPath,
		string(e.Status), e.SHA256,
	}
}

// SummaryHeader is the column order of summary.csv.
var SummaryHeader = []string{
	"country", "project_id", "project_title", "has_pid", "has_pad",
	"pid_count", "pad_count", "pid_paths", "pad_paths",
}

// ProjectSummary is the per-project rollup. Counts are taken from the
// classified set before language and recency selection.
type ProjectSummary struct {
	Country      string   `json:"country" yaml:"country"`
	ProjectID    string   `json:"project_id" yaml:"project_id"`
	ProjectTitle string   `json:"project_title" yaml:"project_title"`
	HasPID       bool     `json:"has_pid" yaml:"has_pid"`
	HasPAD       bool     `json:"has_pad" yaml:"has_pad"`
	PIDCount     int      `json:"pid_count" yaml:"pid_count"`
	PADCount     int      `json:"pad_count" yaml:"pad_count"`
	PIDPaths     []string `json:"pid_paths" yaml:"pid_paths"`
	PADPaths     []string `json:"pad_paths" yaml:"pad_paths"`
}

// Record returns the summary as a CSV row in SummaryHeader order.
func (s ProjectSummary) Record() []string {
	return []string{
		s.Country, s.ProjectID, s.ProjectTitle,
		formatBool(s.HasPID), formatBool(s.HasPAD),
		strconv.Itoa(s.PIDCount), strconv.Itoa(s.PADCount),
		strings.Join(s.PIDPaths, ";"), strings.Join(s.PADPaths, ";"),
	}
}

// formatBool matches the capitalized booleans existing summary consumers expect.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// RunCounters are the aggregate outcome counts of one run.
type RunCounters struct {
	ProjectsProcessed int `json:"projects_processed" yaml:"projects_processed"`
	ProjectsWithPID   int `json:"projects_with_pid" yaml:"projects_with_pid"`
	ProjectsWithPAD   int `json:"projects_with_pad" yaml:"projects_with_pad"`
	Downloaded        int `json:"downloaded" yaml:"downloaded"`
	Skipped           int `json:"skipped" yaml:"skipped"`
	DryRun            int `json:"dry_run" yaml:"dry_run"`
	Failed            int `json:"failed" yaml:"failed"`
	MissingURL        int `json:"missing_url" yaml:"missing_url"`
	Collisions        int `json:"collisions" yaml:"collisions"`
}

// Count increments the counter for status.
func (c *RunCounters) Count(status DownloadStatus) {
	switch status {
	case StatusDownloaded:
		c.Downloaded++
	case StatusSkippedExisting:
		c.Skipped++
	case StatusDryRun:
		c.DryRun++
	case StatusFailed:
		c.Failed++
	}
}

// FailedProject names a project whose processing aborted.
type FailedProject struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Error     string `json:"error" yaml:"error"`
}
