// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/resolve.go
// Summary: Locates the backend executable for development and packaged layouts.

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrResourceDir is returned when the directory holding the bundled
// binaries cannot be determined.
var ErrResourceDir = errors.New("resource directory unavailable")

// BinariesDir is the subdirectory of the resource root that holds sidecars.
const BinariesDir = "binaries"

// DefaultBinary is the base name of the backend executable.
const DefaultBinary = "backend"

// Mode selects which layout the backend is resolved against.
type Mode int

const (
	ModePackaged Mode = iota
	ModeDevelopment
)

func (m Mode) String() string {
	if m == ModeDevelopment {
		return "development"
	}
	return "packaged"
}

// ParseMode accepts "development"/"dev" and "packaged"/"release".
// An empty string yields the build default.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return BuildMode, nil
	case "development", "dev", "debug":
		return ModeDevelopment, nil
	case "packaged", "release", "production":
		return ModePackaged, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want development or packaged)", s)
	}
}

var targetTriples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
}

// BackendFilename returns the platform-qualified executable name, e.g.
// "backend-x86_64-unknown-linux-gnu". Unknown platforms fall back to
// "<base>-<goarch>-<goos>".
func BackendFilename(base, goos, goarch string) string {
	if base == "" {
		base = DefaultBinary
	}
	triple, ok := targetTriples[goos+"/"+goarch]
	if !ok {
		triple = goarch + "-" + goos
	}
	name := base + "-" + triple
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// Resolver computes the backend location. Both modes join
// binaries/<filename> onto a root; only the root differs.
type Resolver struct {
	Mode Mode

	// Binary is the base name passed to BackendFilename.
	Binary string

	// DevResourceDir is the development root. Empty means the working directory.
	DevResourceDir string

	// ResourceDir returns the installed resource root. Nil means the
	// directory holding the running executable.
	ResourceDir func() (string, error)

	goos, goarch string
}

// Root returns the directory the binaries subdirectory is joined onto.
func (r *Resolver) Root() (string, error) {
	if r.Mode == ModeDevelopment {
		if r.DevResourceDir != "" {
			return filepath.Abs(r.DevResourceDir)
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: working directory: %v", ErrResourceDir, err)
		}
		return wd, nil
	}

	resourceDir := r.ResourceDir
	if resourceDir == nil {
		resourceDir = ExecutableDir
	}
	dir, err := resourceDir()
	if err != nil {
		if errors.Is(err, ErrResourceDir) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrResourceDir, err)
	}
	if dir == "" {
		return "", ErrResourceDir
	}
	return dir, nil
}

// Filename returns the platform-qualified backend name for this resolver.
func (r *Resolver) Filename() string {
	goos, goarch := r.goos, r.goarch
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return BackendFilename(r.Binary, goos, goarch)
}

// Resolve returns the absolute path to the backend executable. It does
// not check that the file exists; the spawn reports that.
func (r *Resolver) Resolve() (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, BinariesDir, r.Filename()), nil
}

// ExecutableDir returns the directory containing the running executable,
// with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResourceDir, err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
