// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"errors"

	"github.com/pdiddy/projdocs/pkg/types"
)

// Sink receives the records of a run as they are produced.
type Sink interface {
	Append(ctx context.Context, entries ...types.ManifestEntry) error
	WriteSummaries(ctx context.Context, summaries []types.ProjectSummary) error
	Close() error
}

// Multi fans every call out to all sinks. Errors are joined; one failing
// sink does not stop the others.
type Multi []Sink

// Append implements Sink.
func (m Multi) Append(ctx context.Context, entries ...types.ManifestEntry) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Append(ctx, entries...))
	}
	return errors.Join(errs...)
}

// WriteSummaries implements Sink.
func (m Multi) WriteSummaries(ctx context.Context, summaries []types.ProjectSummary) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteSummaries(ctx, summaries))
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
