// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T, keep int) *Journal {
	t.Helper()
	j, err := OpenWithConfig(Config{
		DBPath:    filepath.Join(t.TempDir(), "sub", "journal.db"),
		KeepLines: keep,
	})
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	j := openTestJournal(t, 0)

	id, err := j.Begin(RunStart{
		Path: "/opt/app/binaries/backend-x86_64-unknown-linux-gnu",
		Mode: "packaged",
		Args: []string{"--path", "/opt/app/binaries/backend-x86_64-unknown-linux-gnu"},
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	run, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Outcome != OutcomeRunning || !run.EndedAt.IsZero() {
		t.Fatalf("new run = %+v", run)
	}
	if len(run.Args) != 2 || run.Args[0] != "--path" {
		t.Fatalf("args = %q", run.Args)
	}

	if err := j.SetPID(id, 4242); err != nil {
		t.Fatalf("SetPID: %v", err)
	}
	if err := j.Finish(id, OutcomeTerminated, -1); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	// A second finish must not overwrite the first outcome.
	if err := j.Finish(id, OutcomeExited, 0); err != nil {
		t.Fatalf("second Finish: %v", err)
	}

	run, _ = j.Get(id)
	if run.PID != 4242 || run.Outcome != OutcomeTerminated || run.ExitCode != -1 {
		t.Fatalf("finished run = %+v", run)
	}
	if run.EndedAt.IsZero() {
		t.Fatalf("EndedAt not set")
	}
}

func TestRecordLineCapsStoredLines(t *testing.T) {
	j := openTestJournal(t, 3)
	id, _ := j.Begin(RunStart{Path: "backend", Mode: "development"})

	for i := 0; i < 5; i++ {
		if err := j.RecordLine(id, fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("RecordLine %d: %v", i, err)
		}
	}

	lines, err := j.Lines(id)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("stored %d lines, want 3", len(lines))
	}
	for i, l := range lines {
		if l.Seq != i || l.Text != fmt.Sprintf("line %d", i) {
			t.Fatalf("line %d = %+v", i, l)
		}
	}

	run, _ := j.Get(id)
	if run.Lines != 5 {
		t.Fatalf("line count = %d, want 5", run.Lines)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	j := openTestJournal(t, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		j.now = func() time.Time { return at }
		id, err := j.Begin(RunStart{Path: "backend", Mode: "packaged"})
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("Recent order wrong: %+v", runs)
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("StartedAt = %v", runs[0].StartedAt)
	}
}

func TestUnknownRun(t *testing.T) {
	j := openTestJournal(t, 0)

	if err := j.RecordLine("missing", "x"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("RecordLine err = %v", err)
	}
	if err := j.Finish("missing", OutcomeExited, 0); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("Finish err = %v", err)
	}
	if err := j.SetPID("missing", 1); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("SetPID err = %v", err)
	}
	if _, err := j.Lines("missing"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("Lines err = %v", err)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := j.Begin(RunStart{Path: "backend", Mode: "packaged"})
	_ = j.Finish(id, OutcomeSpawnFailed, -1)
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	run, err := j.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if run.Outcome != OutcomeSpawnFailed {
		t.Fatalf("outcome = %s", run.Outcome)
	}
}
