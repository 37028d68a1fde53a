// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/pidfile.go
// Summary: Records the running backend so a crashed launcher's orphan can be reaped.

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// errUnverifiable means the platform cannot tell which executable a pid runs.
var errUnverifiable = errors.New("cannot verify process executable")

// PIDRecord is the content of a backend PID file.
type PIDRecord struct {
	PID  int
	Path string
}

// PIDFile stores the pid and executable path of the live backend.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (p *PIDFile) Path() string {
	return p.path
}

// Write stores rec, replacing any previous record.
func (p *PIDFile) Write(rec PIDRecord) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	content := fmt.Sprintf("%d\n%s\n", rec.PID, rec.Path)
	if err := os.WriteFile(p.path, []byte(content), 0600); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the stored record, or an error if absent or malformed.
func (p *PIDFile) Read() (PIDRecord, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return PIDRecord{}, err
	}

	pidStr, path, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
	if err != nil {
		return PIDRecord{}, fmt.Errorf("invalid PID format: %w", err)
	}
	if pid <= 0 {
		return PIDRecord{}, fmt.Errorf("invalid PID value: %d", pid)
	}
	return PIDRecord{PID: pid, Path: strings.TrimSpace(path)}, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// RemoveIf deletes the PID file only if it still names pid.
func (p *PIDFile) RemoveIf(pid int) error {
	rec, err := p.Read()
	if err != nil || rec.PID != pid {
		return nil
	}
	return p.Remove()
}

// sameExecutable reports whether pid is running the file at path. It
// returns errUnverifiable where /proc is not available.
func sameExecutable(pid int, path string) (bool, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		if _, statErr := os.Stat("/proc/self/exe"); statErr != nil {
			return false, errUnverifiable
		}
		// /proc works but the pid is gone.
		return false, nil
	}
	want := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		want = resolved
	}
	return exe == want, nil
}

// reapStale kills a backend left behind by a previous launcher. It only
// kills when the recorded pid is verifiably running the same executable.
func (s *Supervisor) reapStale() {
	pf := s.cfg.PIDFile
	if pf == nil {
		return
	}
	rec, err := pf.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("pid_file", pf.Path()).Msg("Discarding unreadable PID file")
			pf.Remove() //nolint:errcheck
		}
		return
	}

	same, err := sameExecutable(rec.PID, rec.Path)
	switch {
	case errors.Is(err, errUnverifiable):
		s.log.Warn().Int("pid", rec.PID).Msg("Previous backend may still be running; cannot verify it on this platform")
	case same:
		s.log.Warn().Int("pid", rec.PID).Str("path", rec.Path).Msg("Killing backend left by a previous launcher")
		if p, err := os.FindProcess(rec.PID); err == nil {
			if err := killProcess(p); err != nil {
				s.log.Warn().Err(err).Int("pid", rec.PID).Msg("Stale backend kill failed")
			}
		}
	}
	pf.Remove() //nolint:errcheck
}
