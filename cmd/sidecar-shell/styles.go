// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/styles.go
// Summary: Terminal styles for the history listing.

package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/framegrace/sidecar/internal/journal"
)

// Color palette
var (
	colorRunning    = lipgloss.Color("39")  // blue
	colorExited     = lipgloss.Color("214") // orange
	colorTerminated = lipgloss.Color("76")  // green
	colorFailed     = lipgloss.Color("196") // bright red
	colorMuted      = lipgloss.Color("242") // gray
)

// historyStyles renders for one writer; plain text when it is not a terminal.
type historyStyles struct {
	id      lipgloss.Style
	label   lipgloss.Style
	outcome map[journal.Outcome]lipgloss.Style
}

func newHistoryStyles(w io.Writer) historyStyles {
	r := lipgloss.NewRenderer(w)
	return historyStyles{
		id:    r.NewStyle().Bold(true),
		label: r.NewStyle().Foreground(colorMuted),
		outcome: map[journal.Outcome]lipgloss.Style{
			journal.OutcomeRunning:     r.NewStyle().Foreground(colorRunning),
			journal.OutcomeExited:      r.NewStyle().Foreground(colorExited),
			journal.OutcomeTerminated:  r.NewStyle().Foreground(colorTerminated),
			journal.OutcomeSpawnFailed: r.NewStyle().Foreground(colorFailed).Bold(true),
		},
	}
}

func (s historyStyles) renderOutcome(o journal.Outcome, text string) string {
	if st, ok := s.outcome[o]; ok {
		return st.Render(text)
	}
	return text
}
