// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package supervisor

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the backend in a new process group so that helpers it
// forks can be killed with it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killProcess sends SIGKILL to the backend's process group, falling back
// to the process itself if the group is already gone.
func killProcess(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	return p.Kill()
}

// processTree is empty on Unix; the process group already spans the tree.
type processTree struct{}

func trackTree(*os.Process) (*processTree, error) { return nil, nil }

func (t *processTree) kill(p *os.Process) error { return killProcess(p) }

func (t *processTree) release() {}
