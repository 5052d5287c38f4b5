//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Fetch builds the CLI and runs it against PROJECTS (default projects.csv),
// recording the run in reports/ledger.db.
func Fetch() error {
	mg.Deps(Build, Init)
	projects := os.Getenv("PROJECTS")
	if projects == "" {
		projects = "projects.csv"
	}
	if _, err := os.Stat(projects); err != nil {
		return fmt.Errorf("project list: %w", err)
	}
	return sh.RunV(filepath.Join(binDir, binName), "fetch",
		"--projects", projects,
		"--ledger-db", filepath.Join("reports", "ledger.db"),
		"--report", filepath.Join("reports", "last-run.yaml"),
	)
}

// DryRun prints the downloads Fetch would perform.
func DryRun() error {
	mg.Deps(Build)
	projects := os.Getenv("PROJECTS")
	if projects == "" {
		projects = "projects.csv"
	}
	return sh.RunV(filepath.Join(binDir, binName), "fetch", "--projects", projects, "--dry-run")
}

// History lists runs recorded by Fetch.
func History() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "history", "--ledger-db", filepath.Join("reports", "ledger.db"))
}
