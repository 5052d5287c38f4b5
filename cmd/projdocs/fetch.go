// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/projdocs/internal/catalog"
	"github.com/pdiddy/projdocs/internal/download"
	"github.com/pdiddy/projdocs/internal/lang"
	"github.com/pdiddy/projdocs/internal/ledger"
	"github.com/pdiddy/projdocs/internal/mirror"
	"github.com/pdiddy/projdocs/internal/pathname"
	"github.com/pdiddy/projdocs/internal/pipeline"
	"github.com/pdiddy/projdocs/internal/secrets"
	"github.com/pdiddy/projdocs/internal/wds"
	"github.com/pdiddy/projdocs/pkg/types"
)

const (
	defaultTimeout = 30 * time.Second
	defaultOutDir  = "downloads"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download PIDs and PADs for every project in a project list",
	Long: `Fetch reads the project list given by --projects and, for each project,
queries the Documents & Reports API, keeps documents classified as PID or PAD,
applies the language and recency policy, and downloads the rest to

  {out-dir}/{country}/{project_id}_{title}/{PID|PAD}/{date}_{repnb}_{name}_{lang}.pdf

Existing files are skipped. With --dry-run nothing is written; the planned
downloads are printed instead.`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("projects", "", "project list (CSV with a header row)")
	f.String("id-col", "Project Id", "column holding the project identifier")
	f.String("country-col", "Country", "column holding the country")
	f.String("title-col", "Project Name", "column holding the project title")
	f.String("delimiter", ",", `field delimiter of the project list (a single character or "tab")`)
	f.String("languages", string(types.LanguagesEnglish), "language mode: en or all")
	f.String("latest-only", "false", "keep only the newest document per language and type: true or false")
	f.String("out-dir", defaultOutDir, "root directory for downloaded documents")
	f.String("manifest-out", "", "manifest CSV path (default {out-dir}/manifest.csv)")
	f.String("summary-out", "", "summary CSV path (default {out-dir}/summary.csv)")
	f.Bool("dry-run", false, "show what would be downloaded without writing anything")
	f.Bool("verify-pdf", false, "reject downloads that do not parse as PDF")
	f.Duration("timeout", defaultTimeout, "HTTP request timeout")
	f.Duration("delay", 0, "delay between consecutive downloads")
	f.String("api-url", wds.DefaultBaseURL, "Documents & Reports API endpoint")
	f.String("ledger-db", "", "SQLite run history database (off when empty)")
	f.String("report", "", "write a YAML run report to this path")
	f.String("gcs-bucket", "", "mirror new downloads to this Cloud Storage bucket")
	f.String("gcs-prefix", "", "object name prefix inside --gcs-bucket")

	rootCmd.AddCommand(fetchCmd)
}

// fetchSettings is the resolved configuration of one fetch invocation.
type fetchSettings struct {
	Run        types.RunConfig
	Columns    catalog.Columns
	LedgerDB   string
	ReportPath string
	GCSBucket  string
	GCSPrefix  string
}

// loadFetchSettings reads and validates fetch options from v, which has the
// command's flags bound and may carry config file or environment values.
func loadFetchSettings(v *viper.Viper) (fetchSettings, error) {
	var s fetchSettings

	projects := v.GetString("projects")
	if projects == "" {
		return s, fmt.Errorf("--projects is required")
	}

	comma, err := parseDelimiter(v.GetString("delimiter"))
	if err != nil {
		return s, err
	}
	s.Columns = catalog.Columns{
		ID:      v.GetString("id-col"),
		Country: v.GetString("country-col"),
		Title:   v.GetString("title-col"),
		Comma:   comma,
	}

	mode, err := types.ParseLanguageMode(v.GetString("languages"))
	if err != nil {
		return s, err
	}
	latestOnly, err := strconv.ParseBool(v.GetString("latest-only"))
	if err != nil {
		return s, fmt.Errorf("invalid --latest-only %q: want true or false", v.GetString("latest-only"))
	}

	outDir := v.GetString("out-dir")
	if outDir == "" {
		outDir = defaultOutDir
	}
	manifestPath := v.GetString("manifest-out")
	if manifestPath == "" {
		manifestPath = filepath.Join(outDir, "manifest.csv")
	}
	summaryPath := v.GetString("summary-out")
	if summaryPath == "" {
		summaryPath = filepath.Join(outDir, "summary.csv")
	}

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	delay := v.GetDuration("delay")
	if delay < 0 {
		return s, fmt.Errorf("invalid --delay %s: must not be negative", delay)
	}

	httpCfg := types.HTTPConfig{Timeout: timeout, UserAgent: wds.DefaultUserAgent}
	s.Run = types.RunConfig{
		ProjectsFile: projects,
		ManifestPath: manifestPath,
		SummaryPath:  summaryPath,
		Fetch: types.FetchConfig{
			HTTPConfig: httpCfg,
			BaseURL:    v.GetString("api-url"),
			PageSize:   wds.DefaultPageSize,
		},
		Selection: types.SelectionConfig{Languages: mode, LatestOnly: latestOnly},
		Download: types.DownloadConfig{
			HTTPConfig:    httpCfg,
			OutDir:        outDir,
			DryRun:        v.GetBool("dry-run"),
			VerifyPDF:     v.GetBool("verify-pdf"),
			DownloadDelay: delay,
		},
	}
	// A dry run leaves no record outside stdout.
	if !s.Run.Download.DryRun {
		s.LedgerDB = v.GetString("ledger-db")
		s.ReportPath = v.GetString("report")
		s.GCSBucket = v.GetString("gcs-bucket")
		s.GCSPrefix = v.GetString("gcs-prefix")
	}
	return s, nil
}

// parseDelimiter accepts a single character or the word "tab".
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid --delimiter %q: want a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid --delimiter %q", s)
	}
	return r, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	s, err := loadFetchSettings(viper.GetViper())
	if err != nil {
		return err
	}
	logger := slog.Default()

	// Configuration errors surface here, before any network activity.
	cat, err := catalog.Open(s.Run.ProjectsFile, s.Columns, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runID := uuid.NewString()
	startedAt := time.Now()
	dryRun := s.Run.Download.DryRun

	var m download.Mirror
	if s.GCSBucket != "" {
		creds, _ := secrets.Lookup(loadedSecrets, secrets.GCSCredentials)
		g, err := mirror.NewGCS(ctx, s.GCSBucket, s.GCSPrefix, creds, logger)
		if err != nil {
			return err
		}
		defer g.Close()
		m = g
	}

	var (
		sinks ledger.Multi
		index *ledger.Index
	)
	if !dryRun {
		csvSink, err := ledger.OpenCSV(s.Run.ManifestPath, s.Run.SummaryPath)
		if err != nil {
			return err
		}
		sinks = append(sinks, csvSink)

		if s.LedgerDB != "" {
			index, err = ledger.OpenIndex(s.LedgerDB)
			if err != nil {
				sinks.Close()
				return err
			}
			defer index.Close()
			runSink, err := index.BeginRun(ctx, runID, startedAt, s.Run)
			if err != nil {
				sinks.Close()
				return err
			}
			sinks = append(sinks, runSink)
		}
	}
	defer sinks.Close()

	httpClient := &http.Client{Timeout: s.Run.Fetch.Timeout}
	opts := pipeline.Options{
		RunID:      runID,
		Fetcher:    wds.NewClient(httpClient, s.Run.Fetch, logger),
		Downloader: download.New(httpClient, s.Run.Download, m, logger),
		Namer:      pathname.Namer{Root: s.Run.Download.OutDir},
		Selection:  s.Run.Selection,
		Logger:     logger,
	}
	if len(sinks) > 0 {
		opts.Sink = sinks
	}

	res := pipeline.New(opts).Run(ctx, cat)

	if index != nil {
		// The run context may be cancelled; record the outcome regardless.
		if err := index.FinishRun(context.Background(), runID, res.FinishedAt, res.RunCounters, res.FailedProjects); err != nil {
			logger.Error("recording run in ledger", "error", err)
		}
	}
	if s.ReportPath != "" {
		if err := ledger.WriteReport(s.ReportPath, res.Report(s.Run)); err != nil {
			logger.Error("writing run report", "path", s.ReportPath, "error", err)
		}
	}

	if dryRun {
		printPlan(os.Stdout, res.Manifest)
	}
	printCounters(os.Stdout, res)

	if res.Err != nil {
		return res.Err
	}
	if res.ExitCode() != 0 {
		return fmt.Errorf("%d project(s) failed", len(res.FailedProjects))
	}
	return nil
}

// printPlan lists the downloads a dry run would perform.
func printPlan(w io.Writer, entries []types.ManifestEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Nothing to download.")
		return
	}

	fmt.Fprintf(w, "%-10s  %-4s  %-10s  %-4s  %-16s  %s\n",
		"Project", "Type", "Date", "Lang", "Status", "Path")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, e := range entries {
		date := e.DocDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(w, "%-10s  %-4s  %-10s  %-4s  %-16s  %s\n",
			e.ProjectID, e.DocType, date, lang.Normalize(e.Language), e.Status, e.SavedPath)
	}
	fmt.Fprintf(w, "\n%d planned\n", len(entries))
}

func printCounters(w io.Writer, res pipeline.RunResult) {
	fmt.Fprintf(w, "\nprojects: %d (with PID: %d, with PAD: %d), downloaded: %d, skipped: %d, dry-run: %d, failed: %d, missing url: %d, collisions: %d, failed projects: %d\n",
		res.ProjectsProcessed, res.ProjectsWithPID, res.ProjectsWithPAD,
		res.Downloaded, res.Skipped, res.DryRun, res.Failed,
		res.MissingURL, res.Collisions, len(res.FailedProjects))
}
