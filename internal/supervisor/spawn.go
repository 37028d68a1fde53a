// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/spawn.go
// Summary: Starts the backend executable as a child with a captured stderr pipe.

package supervisor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Command describes how to launch the backend.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil inherits the parent environment

	// Stdout receives the backend's standard output. It is not consumed by
	// the supervisor; nil discards it.
	Stdout io.Writer
}

// Spawner starts a backend process and returns its handle.
type Spawner interface {
	Spawn(ctx context.Context, cmd Command) (*Handle, error)
}

// ExecSpawner starts the backend with os/exec. On Unix the backend gets
// its own process group and Kill signals the whole group. On Windows it is
// placed in a job object and Kill terminates the job.
type ExecSpawner struct{}

// Spawn starts cmd without waiting for it. ctx bounds only the start; the
// backend outlives it.
func (ExecSpawner) Spawn(ctx context.Context, cmd Command) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cmd.Path == "" {
		return nil, fmt.Errorf("spawn backend: empty path")
	}

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = cmd.Stdout
	c.Stdin = nil
	c.SysProcAttr = sysProcAttr()

	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	// Without a tree the kill falls back to the process alone.
	tree, _ := trackTree(c.Process)
	return NewHandle(c.Process.Pid, stderr, &execProcess{cmd: c, tree: tree}), nil
}

type execProcess struct {
	cmd  *exec.Cmd
	tree *processTree
}

func (p *execProcess) Kill() error {
	return p.tree.kill(p.cmd.Process)
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	p.tree.release()
	return err
}

var _ Process = (*execProcess)(nil)
