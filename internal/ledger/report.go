// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/projdocs/pkg/types"
)

// RunReport is the YAML record of one run.
type RunReport struct {
	RunID          string                `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time             `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time             `json:"finished_at" yaml:"finished_at"`
	Config         types.RunConfig       `json:"config" yaml:"config"`
	Counters       types.RunCounters     `json:"counters" yaml:"counters"`
	FailedProjects []types.FailedProject `json:"failed_projects,omitempty" yaml:"failed_projects,omitempty"`
}

// WriteReport marshals r to YAML at path.
func WriteReport(path string, r RunReport) error {
	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (RunReport, error) {
	var r RunReport
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("reading report: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return r, nil
}
