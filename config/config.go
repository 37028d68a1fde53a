// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Launcher configuration loaded from sidecar.toml.

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/framegrace/sidecar/internal/logging"
	"github.com/framegrace/sidecar/internal/supervisor"
)

// Config is the launcher configuration.
type Config struct {
	// Mode is "development" or "packaged". Empty uses the build default.
	Mode string `toml:"mode"`

	// Binary is the backend base name; the platform suffix is appended.
	Binary string `toml:"binary"`

	// ResourceDir overrides the packaged resource root.
	ResourceDir string `toml:"resource_dir"`

	// DevResourceDir is the development resource root. Empty means the
	// working directory.
	DevResourceDir string `toml:"dev_resource_dir"`

	// PassPath passes "--path <resolved>" to the backend.
	PassPath bool `toml:"pass_path"`

	// MaxLineWidth truncates relayed stderr lines in the log. 0 disables it.
	MaxLineWidth int `toml:"max_line_width"`

	Log     LogConfig     `toml:"log"`
	Journal JournalConfig `toml:"journal"`
}

// LogConfig configures launcher logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled   bool   `toml:"enabled"`
	Path      string `toml:"path"` // empty uses the default under the config dir
	KeepLines int    `toml:"keep_lines"`
}

// Load reads the config at path on top of Defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	if _, err := supervisor.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.MaxLineWidth < 0 {
		return fmt.Errorf("max_line_width must not be negative (got %d)", c.MaxLineWidth)
	}
	if c.Journal.KeepLines < 0 {
		return fmt.Errorf("journal.keep_lines must not be negative (got %d)", c.Journal.KeepLines)
	}
	if strings.ContainsAny(c.Binary, `/\`) {
		return fmt.Errorf("binary must be a file name, not a path (got %q)", c.Binary)
	}
	return nil
}

// Resolver builds the backend path resolver described by c.
func (c *Config) Resolver() (*supervisor.Resolver, error) {
	mode, err := supervisor.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	r := &supervisor.Resolver{
		Mode:           mode,
		Binary:         c.Binary,
		DevResourceDir: c.DevResourceDir,
	}
	if dir := c.ResourceDir; dir != "" {
		r.ResourceDir = func() (string, error) { return dir, nil }
	}
	return r, nil
}
