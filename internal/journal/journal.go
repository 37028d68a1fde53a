// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/journal/journal.go
// Summary: SQLite journal of backend runs and their captured stderr.
//
// Every launch gets a row in runs; stderr lines go to run_lines, capped
// per run so a chatty backend cannot grow the database without bound.

package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome is how a backend run ended.
type Outcome string

const (
	OutcomeRunning     Outcome = "running"
	OutcomeExited      Outcome = "exited"
	OutcomeTerminated  Outcome = "terminated"
	OutcomeSpawnFailed Outcome = "spawn_failed"
)

// DefaultKeepLines is the per-run stderr line cap.
const DefaultKeepLines = 2000

// ErrUnknownRun is returned for run ids that are not in the journal.
var ErrUnknownRun = errors.New("unknown run")

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    path       TEXT NOT NULL,
    mode       TEXT NOT NULL,
    args       TEXT NOT NULL DEFAULT '',
    pid        INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,          -- UnixNano
    ended_at   INTEGER NOT NULL DEFAULT 0,
    outcome    TEXT NOT NULL,
    exit_code  INTEGER NOT NULL DEFAULT 0,
    line_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_lines (
    run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq       INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    content   TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);
`

// RunStart describes a launch about to happen.
type RunStart struct {
	Path string
	Mode string
	Args []string
}

// Run is a journal row.
type Run struct {
	ID        string
	Path      string
	Mode      string
	Args      []string
	PID       int
	StartedAt time.Time
	EndedAt   time.Time // zero while running
	Outcome   Outcome
	ExitCode  int
	Lines     int
}

// Line is one captured stderr line.
type Line struct {
	Seq       int
	Timestamp time.Time
	Text      string
}

// Config configures a Journal.
type Config struct {
	DBPath    string
	KeepLines int // 0 uses DefaultKeepLines
}

// Journal records backend runs in SQLite. It is safe for concurrent use.
type Journal struct {
	config Config
	db     *sql.DB
	now    func() time.Time

	mu sync.Mutex
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	return OpenWithConfig(Config{DBPath: path})
}

// OpenWithConfig opens a journal with custom settings.
func OpenWithConfig(config Config) (*Journal, error) {
	if config.KeepLines <= 0 {
		config.KeepLines = DefaultKeepLines
	}

	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := config.DBPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(2000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// A single connection serialises writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{config: config, db: db, now: time.Now}, nil
}

func checkSchemaVersion(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("set journal schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported journal schema version %d (expected %d)", version, schemaVersion)
	}
	return nil
}

// Begin inserts a running row and returns its id.
func (j *Journal) Begin(run RunStart) (string, error) {
	id := uuid.NewString()
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO runs (id, path, mode, args, started_at, outcome) VALUES (?, ?, ?, ?, ?, ?)`,
		id, run.Path, run.Mode, strings.Join(run.Args, "\x00"), j.now().UnixNano(), string(OutcomeRunning),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SetPID records the pid of a started run.
func (j *Journal) SetPID(runID string, pid int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updateOne(`UPDATE runs SET pid = ? WHERE id = ?`, pid, runID)
}

// RecordLine appends a stderr line. Lines past the per-run cap are counted
// but not stored.
func (j *Journal) RecordLine(runID, line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var count int
	err := j.db.QueryRow(`SELECT line_count FROM runs WHERE id = ?`, runID).Scan(&count)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return fmt.Errorf("read line count: %w", err)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if count < j.config.KeepLines {
		if _, err := tx.Exec(
			`INSERT INTO run_lines (run_id, seq, timestamp, content) VALUES (?, ?, ?, ?)`,
			runID, count, j.now().UnixNano(), line,
		); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE runs SET line_count = line_count + 1 WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("bump line count: %w", err)
	}
	return tx.Commit()
}

// Finish closes a run. Finishing an already finished run is a no-op.
func (j *Journal) Finish(runID string, outcome Outcome, exitCode int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.Exec(
		`UPDATE runs SET outcome = ?, exit_code = ?, ended_at = ? WHERE id = ? AND ended_at = 0`,
		string(outcome), exitCode, j.now().UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := j.get(runID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one run.
func (j *Journal) Get(runID string) (Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.get(runID)
}

func (j *Journal) get(runID string) (Run, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return run, err
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Lines returns the stored stderr lines of a run in order.
func (j *Journal) Lines(runID string) ([]Line, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.get(runID); err != nil {
		return nil, err
	}
	rows, err := j.db.Query(`SELECT seq, timestamp, content FROM run_lines WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var ts int64
		if err := rows.Scan(&l.Seq, &ts, &l.Text); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Timestamp = time.Unix(0, ts)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

func (j *Journal) updateOne(query string, args ...any) error {
	res, err := j.db.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUnknownRun
	}
	return nil
}

const runColumns = `id, path, mode, args, pid, started_at, ended_at, outcome, exit_code, line_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r              Run
		args, outcome  string
		started, ended int64
	)
	if err := row.Scan(&r.ID, &r.Path, &r.Mode, &args, &r.PID, &started, &ended, &outcome, &r.ExitCode, &r.Lines); err != nil {
		return Run{}, err
	}
	if args != "" {
		r.Args = strings.Split(args, "\x00")
	}
	r.StartedAt = time.Unix(0, started)
	if ended != 0 {
		r.EndedAt = time.Unix(0, ended)
	}
	r.Outcome = Outcome(outcome)
	return r, nil
}
