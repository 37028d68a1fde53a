// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/state.go
// Summary: Lifecycle states of the supervised backend process.

package supervisor

// State represents the lifecycle state of the backend process
type State int

const (
	StateNotStarted State = iota
	StateStarting         // Resolving the path and spawning
	StateRunning          // Handle installed, stderr relay active
	StateExited           // Backend exited on its own (stderr closed)
	StateTerminated       // Killed by a close request
	StateFailed           // Resolve or spawn failed; startup aborts
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateExited || s == StateTerminated || s == StateFailed
}
