// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one run: for each project it fetches the document
// list, classifies and selects PIDs and PADs, downloads them, and records
// every attempt. A project that fails is recorded and the run moves on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/projdocs/internal/classify"
	"github.com/pdiddy/projdocs/internal/download"
	"github.com/pdiddy/projdocs/internal/ledger"
	"github.com/pdiddy/projdocs/internal/pathname"
	"github.com/pdiddy/projdocs/internal/selection"
	"github.com/pdiddy/projdocs/pkg/types"
)

// Source yields projects until io.EOF.
type Source interface {
	Next() (types.ProjectRecord, error)
}

// Fetcher lists every document of a project.
type Fetcher interface {
	FetchAllDocuments(ctx context.Context, projectID string) ([]types.RawDocument, error)
}

// Downloader stores one document.
type Downloader interface {
	Download(ctx context.Context, sourceURL, destPath string) download.Result
}

// Options wires a Pipeline. Sink may be nil, in which case nothing is
// persisted and results are only returned.
type Options struct {
	RunID      string
	Fetcher    Fetcher
	Downloader Downloader
	Namer      pathname.Namer
	Selection  types.SelectionConfig
	Sink       ledger.Sink
	Logger     *slog.Logger
}

// Pipeline processes projects sequentially.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Pipeline. A missing RunID is generated.
func New(opts Options) *Pipeline {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Selection.Languages == "" {
		opts.Selection.Languages = types.LanguagesEnglish
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, logger: logger.With("run_id", opts.RunID)}
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	types.RunCounters

	FailedProjects []types.FailedProject
	Summaries      []types.ProjectSummary
	Manifest       []types.ManifestEntry

	// Err is set when the run stopped early: the project source failed,
	// the context was cancelled, or the summary could not be written.
	Err error
}

// ExitCode returns 1 when any project failed or the run stopped early.
func (r RunResult) ExitCode() int {
	if len(r.FailedProjects) > 0 || r.Err != nil {
		return 1
	}
	return 0
}

// Report returns the run as a ledger.RunReport.
func (r RunResult) Report(cfg types.RunConfig) ledger.RunReport {
	return ledger.RunReport{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Config:         cfg,
		Counters:       r.RunCounters,
		FailedProjects: r.FailedProjects,
	}
}

// run is the mutable state of one Run call.
type run struct {
	*Pipeline
	res     *RunResult
	claimed map[string]string
}

// Run processes every project from src in order.
func (p *Pipeline) Run(ctx context.Context, src Source) RunResult {
	res := RunResult{RunID: p.opts.RunID, StartedAt: time.Now()}
	r := &run{Pipeline: p, res: &res, claimed: make(map[string]string)}

	p.logger.Info("run started")
	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		project, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Error("reading project list", "error", err)
			res.Err = err
			break
		}

		res.ProjectsProcessed++
		summary, err := r.project(ctx, project)
		if err != nil {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				break
			}
			p.logger.Error("project failed", "project", project.ID, "error", err)
			res.FailedProjects = append(res.FailedProjects, types.FailedProject{ProjectID: project.ID, Error: err.Error()})
			continue
		}
		if summary.HasPID {
			res.ProjectsWithPID++
		}
		if summary.HasPAD {
			res.ProjectsWithPAD++
		}
		res.Summaries = append(res.Summaries, summary)
	}

	if p.opts.Sink != nil {
		// Summaries of the projects already processed are kept after cancellation.
		if err := p.opts.Sink.WriteSummaries(context.WithoutCancel(ctx), res.Summaries); err != nil {
			p.logger.Error("writing summary", "error", err)
			res.Err = errors.Join(res.Err, err)
		}
	}
	res.FinishedAt = time.Now()

	p.logger.Info("run finished",
		"projects", res.ProjectsProcessed,
		"with_pid", res.ProjectsWithPID,
		"with_pad", res.ProjectsWithPAD,
		"downloaded", res.Downloaded,
		"skipped", res.Skipped,
		"dry_run", res.DryRun,
		"failed", res.Failed,
		"missing_url", res.MissingURL,
		"collisions", res.Collisions,
		"failed_projects", len(res.FailedProjects),
		"elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
	return res
}

// project processes one project. Panics are converted to errors.
func (r *run) project(ctx context.Context, project types.ProjectRecord) (summary types.ProjectSummary, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()

	log := r.logger.With("project", project.ID)
	raw, err := r.opts.Fetcher.FetchAllDocuments(ctx, project.ID)
	if err != nil {
		return summary, fmt.Errorf("fetching documents: %w", err)
	}
	parts := classify.Partition(raw)
	log.Info("documents found", "total", len(raw), "pid", len(parts[types.DocPID]), "pad", len(parts[types.DocPAD]))

	summary = types.ProjectSummary{
		Country:      project.Country,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		PIDCount:     len(parts[types.DocPID]),
		PADCount:     len(parts[types.DocPAD]),
	}
	summary.HasPID = summary.PIDCount > 0
	summary.HasPAD = summary.PADCount > 0

	for _, docType := range types.DocTypes {
		selected := selection.Select(parts[docType], r.opts.Selection.Languages, r.opts.Selection.LatestOnly)
		for _, doc := range selected {
			entry, ok, err := r.document(ctx, log, doc, project)
			if err != nil {
				return summary, err
			}
			if !ok || entry.Status == types.StatusFailed {
				continue
			}
			switch docType {
			case types.DocPID:
				summary.PIDPaths = append(summary.PIDPaths, entry.SavedPath)
			case types.DocPAD:
				summary.PADPaths = append(summary.PADPaths, entry.SavedPath)
			}
		}
	}
	return summary, nil
}

// document downloads one selected document and records the attempt. ok is
// false when the document has no download URL and nothing was attempted.
func (r *run) document(ctx context.Context, log *slog.Logger, doc types.SelectedDocument, project types.ProjectRecord) (types.ManifestEntry, bool, error) {
	dest := r.opts.Namer.Build(doc, project)
	log = log.With("type", doc.Type, "path", dest)

	if doc.FileURL == "" {
		log.Warn("no download URL", "name", doc.DisplayName)
		r.res.MissingURL++
		return types.ManifestEntry{}, false, nil
	}

	if prev, seen := r.claimed[dest]; seen && prev != doc.FileURL {
		log.Warn("path collision", "url", doc.FileURL, "claimed_by", prev)
		r.res.Collisions++
	} else if !seen {
		r.claimed[dest] = doc.FileURL
	}

	result := r.opts.Downloader.Download(ctx, doc.FileURL, dest)
	log.Debug("download", "status", result.Status)

	entry := types.ManifestEntry{
		Country:      project.Country,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		DocType:      doc.Type,
		DocDate:      doc.Date,
		ReportNumber: doc.ReportNumber,
		Language:     doc.Language,
		SourceURL:    doc.SourceURL,
		FileURL:      doc.FileURL,
		SavedPath:    dest,
		Status:       result.Status,
		SHA256:       result.SHA256,
	}
	r.res.Count(result.Status)
	r.res.Manifest = append(r.res.Manifest, entry)

	if r.opts.Sink != nil {
		if err := r.opts.Sink.Append(ctx, entry); err != nil {
			return entry, true, fmt.Errorf("recording manifest entry: %w", err)
		}
	}
	return entry, true, nil
}
