// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/supervisor.go
// Summary: Starts the backend sidecar, relays its stderr, and kills it on close.
//
// Lifecycle: NotStarted -> Starting -> Running -> (Exited | Terminated).
// A failed resolve or spawn ends in Failed and the caller aborts startup.

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/framegrace/sidecar/internal/journal"
)

// ErrAlreadyStarted is returned by Start on a supervisor that has left
// StateNotStarted.
var ErrAlreadyStarted = errors.New("backend already started")

// Recorder persists backend runs. *journal.Journal implements it.
type Recorder interface {
	Begin(run journal.RunStart) (string, error)
	SetPID(runID string, pid int) error
	RecordLine(runID, line string) error
	Finish(runID string, outcome journal.Outcome, exitCode int) error
}

// Config configures a Supervisor.
type Config struct {
	Resolver *Resolver
	Spawner  Spawner // nil uses ExecSpawner
	Logger   zerolog.Logger

	// PassPath passes "--path <resolved>" to the backend.
	PassPath bool

	// Dir is the backend working directory. Empty inherits ours.
	Dir string

	// Stdout receives the backend's stdout. Nil discards it.
	Stdout io.Writer

	// MaxLineWidth truncates logged stderr lines. 0 disables it.
	MaxLineWidth int

	// Sinks receive stderr lines in addition to the logger.
	Sinks []LineSink

	// Recorder is optional.
	Recorder Recorder

	// PIDFile, if set, records the live backend so the next launcher can
	// reap it after a crash.
	PIDFile *PIDFile
}

// Supervisor owns the single backend process of the application.
type Supervisor struct {
	cfg  Config
	log  zerolog.Logger
	slot Slot

	mu    sync.Mutex
	state State
	path  string
	pid   int

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a supervisor in StateNotStarted.
func New(cfg Config) *Supervisor {
	if cfg.Resolver == nil {
		cfg.Resolver = &Resolver{Mode: BuildMode}
	}
	if cfg.Spawner == nil {
		cfg.Spawner = ExecSpawner{}
	}
	return &Supervisor{
		cfg:  cfg,
		log:  cfg.Logger.With().Str("component", "supervisor").Logger(),
		done: make(chan struct{}),
	}
}

// Start resolves and launches the backend, then relays its stderr in the
// background. It returns once the process is started. Resolve and spawn
// failures are returned and leave the supervisor in StateFailed.
//
// If Shutdown ran before the spawn completed, the new backend is killed
// at once and Start returns nil.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	path, err := s.cfg.Resolver.Resolve()
	if err != nil {
		s.fail()
		return fmt.Errorf("resolve backend path: %w", err)
	}
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()

	s.reapStale()

	if s.slot.Closed() {
		s.log.Info().Msg("Close requested before launch; backend not started")
		s.transition(StateTerminated)
		s.closeDone()
		return nil
	}

	cmd := Command{
		Path:   path,
		Args:   s.args(path),
		Dir:    s.cfg.Dir,
		Stdout: s.cfg.Stdout,
	}
	s.log.Info().
		Str("path", path).
		Str("mode", s.cfg.Resolver.Mode.String()).
		Strs("args", cmd.Args).
		Msg("Launching backend binary")

	runID := s.begin(path, cmd.Args)

	h, err := s.cfg.Spawner.Spawn(ctx, cmd)
	if err != nil {
		s.finish(runID, journal.OutcomeSpawnFailed, -1)
		s.fail()
		return fmt.Errorf("start backend: %w", err)
	}
	s.recordPID(runID, h.PID())

	s.mu.Lock()
	installErr := s.slot.Install(h)
	if installErr == nil {
		s.state = StateRunning
		s.pid = h.PID()
	}
	s.mu.Unlock()

	if installErr != nil {
		s.log.Warn().Err(installErr).Int("pid", h.PID()).Msg("Killing backend that started after close")
		if err := h.Kill(); err != nil {
			s.log.Warn().Err(err).Int("pid", h.PID()).Msg("Kill failed")
		}
		s.transition(StateTerminated)
		go s.relay(h, runID)
		if errors.Is(installErr, ErrSlotClosed) {
			return nil
		}
		return installErr
	}

	s.log.Info().Int("pid", h.PID()).Msg("Backend started")
	if pf := s.cfg.PIDFile; pf != nil {
		if err := pf.Write(PIDRecord{PID: h.PID(), Path: path}); err != nil {
			s.log.Warn().Err(err).Msg("PID file not written")
		}
	}
	go s.relay(h, runID)
	return nil
}

// Shutdown handles a close request. It takes the handle out of the slot
// under the lock, releases the lock, and kills the process. Kill errors
// are logged and dropped. With no handle present it does nothing.
func (s *Supervisor) Shutdown() {
	h := s.slot.Take()
	if h == nil {
		s.log.Debug().Msg("Close requested; no backend to terminate")
		return
	}

	s.transition(StateTerminated)
	s.log.Info().Int("pid", h.PID()).Msg("Terminating backend")
	if err := h.Kill(); err != nil {
		s.log.Warn().Err(err).Int("pid", h.PID()).Msg("Backend kill failed")
	}
}

// relay drains stderr, reaps the process, and records the outcome. It
// marks the run Exited only if the handle was still installed, i.e. the
// backend went away without a close request.
func (s *Supervisor) relay(h *Handle, runID string) {
	defer s.closeDone()

	sinks := make([]LineSink, 0, len(s.cfg.Sinks)+2)
	sinks = append(sinks, LogSink{
		Logger:   s.cfg.Logger.With().Str("component", "backend").Int("pid", h.PID()).Logger(),
		MaxWidth: s.cfg.MaxLineWidth,
	})
	sinks = append(sinks, s.cfg.Sinks...)
	if s.cfg.Recorder != nil && runID != "" {
		sinks = append(sinks, LineSinkFunc(func(line string) {
			if err := s.cfg.Recorder.RecordLine(runID, line); err != nil {
				s.log.Debug().Err(err).Msg("Journal line dropped")
			}
		}))
	}

	if stderr := h.Stderr(); stderr != nil {
		n, err := Relay(stderr, sinks...)
		if err != nil {
			s.log.Warn().Err(err).Int("pid", h.PID()).Msg("Stderr relay stopped")
		}
		s.log.Debug().Int("pid", h.PID()).Int("lines", n).Msg("Stderr closed")
	}

	code := exitCode(h.Wait())
	outcome := journal.OutcomeTerminated
	if s.slot.TakeIf(h) {
		outcome = journal.OutcomeExited
		s.transition(StateExited)
		s.log.Info().Int("pid", h.PID()).Int("exit_code", code).
			Dur("uptime", time.Since(h.StartedAt())).Msg("Backend exited")
	}
	s.finish(runID, outcome, code)
	if pf := s.cfg.PIDFile; pf != nil {
		if err := pf.RemoveIf(h.PID()); err != nil {
			s.log.Debug().Err(err).Msg("PID file not removed")
		}
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the pid of the last started backend, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Path returns the resolved backend path once Start has resolved it.
func (s *Supervisor) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Done is closed when no backend is left to relay: after the stderr relay
// finishes, or when Start fails or declines to launch.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until Done is closed or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) args(path string) []string {
	if s.cfg.PassPath {
		return []string{"--path", path}
	}
	return nil
}

// transition moves to the given state unless the current one is terminal.
func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = to
}

func (s *Supervisor) fail() {
	s.transition(StateFailed)
	s.closeDone()
}

func (s *Supervisor) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Supervisor) begin(path string, args []string) string {
	if s.cfg.Recorder == nil {
		return ""
	}
	id, err := s.cfg.Recorder.Begin(journal.RunStart{
		Path: path,
		Mode: s.cfg.Resolver.Mode.String(),
		Args: args,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Journal begin failed")
		return ""
	}
	return id
}

func (s *Supervisor) recordPID(runID string, pid int) {
	if s.cfg.Recorder == nil || runID == "" {
		return
	}
	if err := s.cfg.Recorder.SetPID(runID, pid); err != nil {
		s.log.Warn().Err(err).Msg("Journal pid update failed")
	}
}

func (s *Supervisor) finish(runID string, outcome journal.Outcome, code int) {
	if s.cfg.Recorder == nil || runID == "" {
		return
	}
	if err := s.cfg.Recorder.Finish(runID, outcome, code); err != nil {
		s.log.Warn().Err(err).Msg("Journal finish failed")
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
