// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/projdocs/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs recorded in the ledger database",
	Long: `History reads the SQLite database written by fetch --ledger-db and lists
recent runs, newest first, with their download counters.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("ledger-db", "", "SQLite run history database")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 = all)")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlag("ledger-db", cmd.Flags().Lookup("ledger-db")); err != nil {
		return err
	}
	path := viper.GetString("ledger-db")
	if path == "" {
		return fmt.Errorf("--ledger-db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	index, err := ledger.OpenIndex(path)
	if err != nil {
		return err
	}
	defer index.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := index.Runs(context.Background(), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistory(os.Stdout, runs, jsonOutput)
}

func formatHistory(w io.Writer, runs []ledger.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-9s  %8s  %10s  %7s  %6s  %s\n",
		"Run", "Started", "Duration", "Projects", "Downloaded", "Skipped", "Failed", "Failed projects")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, r := range runs {
		duration := "running"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-9s  %8d  %10d  %7d  %6d  %d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), duration,
			r.Counters.ProjectsProcessed, r.Counters.Downloaded, r.Counters.Skipped,
			r.Counters.Failed, len(r.FailedProjects))
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}
