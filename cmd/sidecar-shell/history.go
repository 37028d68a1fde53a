// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/history.go
// Summary: Lists recorded backend runs and their captured stderr.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/framegrace/sidecar/internal/journal"
)

var (
	historyLimit int
	historyLines string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backend runs from the journal",
	Long: `Show recent backend runs, newest first.

Examples:
  sidecar-shell history               # last 20 runs
  sidecar-shell history --limit 5
  sidecar-shell history --lines <id>  # stderr captured for one run`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyLines, "lines", "", "Print the stderr lines of the given run id")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadSettings()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !cfg.Journal.Enabled {
		fmt.Fprintln(out, "Journal disabled")
		return nil
	}
	// Listing must not create the database.
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
		if historyLines != "" {
			return fmt.Errorf("run %s: %w", historyLines, journal.ErrUnknownRun)
		}
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	j, err := journal.OpenWithConfig(journal.Config{
		DBPath:    cfg.Journal.Path,
		KeepLines: cfg.Journal.KeepLines,
	})
	if err != nil {
		return err
	}
	defer j.Close()

	if historyLines != "" {
		lines, err := j.Lines(historyLines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintf(out, "%s  %s\n", l.Timestamp.Format(time.TimeOnly), l.Text)
		}
		return nil
	}

	runs, err := j.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	styles := newHistoryStyles(out)
	for _, r := range runs {
		printRun(out, styles, r)
	}
	return nil
}

func printRun(w io.Writer, st historyStyles, r journal.Run) {
	// Pad before styling so escape codes don't break the columns.
	outcome := st.renderOutcome(r.Outcome, fmt.Sprintf("%-12s", r.Outcome))
	fmt.Fprintf(w, "%s  %s pid %-7d %s\n", st.id.Render(r.ID), outcome, r.PID, humanize.Time(r.StartedAt))
	fmt.Fprintf(w, "  %s %s (%s)\n", st.label.Render("Path:"), r.Path, r.Mode)
	if len(r.Args) > 0 {
		fmt.Fprintf(w, "  %s %s\n", st.label.Render("Args:"), strings.Join(r.Args, " "))
	}
	if !r.EndedAt.IsZero() {
		fmt.Fprintf(w, "  Ran %s, exit code %d\n", r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond), r.ExitCode)
	}
	if r.Lines > 0 {
		fmt.Fprintf(w, "  %s %s lines\n", st.label.Render("Stderr:"), humanize.Comma(int64(r.Lines)))
	}
}
