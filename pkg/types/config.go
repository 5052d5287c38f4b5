package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "projdocs/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for querying the document-search API.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the search endpoint (default: the WDS v2 API).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the number of records requested per page (default 200).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxAttempts is the total number of attempts per page request,
	// including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// LanguageMode selects which document languages are kept.
type LanguageMode string

const (
	LanguagesEnglish LanguageMode = "en"
	LanguagesAll     LanguageMode = "all"
)

// ParseLanguageMode validates a --languages value.
func ParseLanguageMode(s string) (LanguageMode, error) {
	switch LanguageMode(s) {
	case LanguagesEnglish, LanguagesAll:
		return LanguageMode(s), nil
	default:
		return "", fmt.Errorf("invalid language mode %q: want %q or %q", s, LanguagesEnglish, LanguagesAll)
	}
}

// SelectionConfig holds the language and recency policy.
type SelectionConfig struct {
	// Languages is "en" (English, with single-document fallback) or "all".
	Languages LanguageMode `json:"languages" yaml:"languages"`

	// LatestOnly keeps only the newest document per language per type.
	LatestOnly bool `json:"latest_only" yaml:"latest_only"`
}

// DownloadConfig holds settings for the download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutDir is the root of the document tree.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// DryRun reports what would be downloaded without touching disk or network.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// VerifyPDF rejects downloads that do not parse as PDF.
	VerifyPDF bool `json:"verify_pdf" yaml:"verify_pdf"`

	// DownloadDelay is the pause between consecutive transfers (default 0).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`
}

// RunConfig groups all stage configurations for one run.
type RunConfig struct {
	ProjectsFile string          `json:"projects_file" yaml:"projects_file"`
	ManifestPath string          `json:"manifest_path" yaml:"manifest_path"`
	SummaryPath  string          `json:"summary_path" yaml:"summary_path"`
	Fetch        FetchConfig     `json:"fetch" yaml:"fetch"`
	Selection    SelectionConfig `json:"selection" yaml:"selection"`
	Download     DownloadConfig  `json:"download" yaml:"download"`
}
