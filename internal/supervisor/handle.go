// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/handle.go
// Summary: Handle to a live backend process and the slot that owns it.

package supervisor

import (
	"errors"
	"io"
	"sync"
	"time"
)

var (
	// ErrSlotOccupied is returned when a second handle is installed while
	// the first is still present.
	ErrSlotOccupied = errors.New("backend handle already installed")

	// ErrSlotClosed is returned when a handle is installed after a close
	// request emptied the slot.
	ErrSlotClosed = errors.New("close requested before backend was installed")
)

// Process is the termination and reaping capability of a child process.
type Process interface {
	Kill() error
	Wait() error
}

// Handle is a live backend process: its pid, its stderr stream, and the
// means to kill and reap it.
type Handle struct {
	pid       int
	stderr    io.ReadCloser
	proc      Process
	startedAt time.Time
}

// NewHandle wraps a started process. stderr may be nil when the spawner
// does not capture it.
func NewHandle(pid int, stderr io.ReadCloser, proc Process) *Handle {
	return &Handle{
		pid:       pid,
		stderr:    stderr,
		proc:      proc,
		startedAt: time.Now(),
	}
}

func (h *Handle) PID() int              { return h.pid }
func (h *Handle) Stderr() io.ReadCloser { return h.stderr }
func (h *Handle) StartedAt() time.Time  { return h.startedAt }

// Kill requests termination. It does not wait for the process to exit.
func (h *Handle) Kill() error { return h.proc.Kill() }

// Wait blocks until the process exits. Call it only after stderr has been
// drained.
func (h *Handle) Wait() error { return h.proc.Wait() }

// Slot holds at most one Handle. Ownership moves out with Take, so a
// handle is killed at most once.
type Slot struct {
	mu     sync.Mutex
	handle *Handle
	closed bool
}

// Install stores h. It fails if a handle is already present or if Take
// has already been called.
func (s *Slot) Install(h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSlotClosed
	}
	if s.handle != nil {
		return ErrSlotOccupied
	}
	s.handle = h
	return nil
}

// Take removes and returns the handle, or nil if none is present. The slot
// is closed afterwards: later Installs fail with ErrSlotClosed.
func (s *Slot) Take() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	s.handle = nil
	s.closed = true
	return h
}

// TakeIf clears the slot only if h is still the installed handle. It
// reports whether it did. The slot stays open.
func (s *Slot) TakeIf(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil || s.handle != h {
		return false
	}
	s.handle = nil
	return true
}

// Current returns the installed handle without removing it.
func (s *Slot) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Closed reports whether Take has been called.
func (s *Slot) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
