// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Standard per-user paths for the launcher.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDirName is the directory name under the user config dir.
const AppDirName = "sidecar-shell"

// Paths holds standard file paths for the launcher
type Paths struct {
	ConfigDir   string // <UserConfigDir>/sidecar-shell
	ConfigPath  string // <ConfigDir>/sidecar.toml
	LockPath    string // <ConfigDir>/launcher.lock
	JournalPath string // <ConfigDir>/journal.db
	PIDPath     string // <ConfigDir>/backend.pid
}

// GetPaths returns the standard paths for the current user.
func GetPaths() (*Paths, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("get config directory: %w", err)
	}
	return PathsIn(filepath.Join(root, AppDirName)), nil
}

// PathsIn returns the standard layout rooted at dir.
func PathsIn(dir string) *Paths {
	return &Paths{
		ConfigDir:   dir,
		ConfigPath:  filepath.Join(dir, "sidecar.toml"),
		LockPath:    filepath.Join(dir, "launcher.lock"),
		JournalPath: filepath.Join(dir, "journal.db"),
		PIDPath:     filepath.Join(dir, "backend.pid"),
	}
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func (p *Paths) EnsureConfigDir() error {
	return os.MkdirAll(p.ConfigDir, 0755)
}
