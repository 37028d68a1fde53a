// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/root.go
// Summary: Command tree and shared flag handling.

package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/framegrace/sidecar/config"
	"github.com/framegrace/sidecar/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

// Flags shared by every subcommand. Empty/zero values leave the config
// file setting in place.
var (
	flagConfig         string
	flagMode           string
	flagResourceDir    string
	flagDevResourceDir string
	flagPassPath       bool
	flagLogLevel       string
	flagLogFormat      string
	flagNoJournal      bool
)

var rootCmd = &cobra.Command{
	Use:     "sidecar-shell",
	Short:   "Launch and supervise the backend sidecar",
	Version: Version,
	Long: `sidecar-shell starts the bundled backend executable, relays its stderr
to the log, and kills it when the shell is asked to close (SIGINT, SIGTERM
or SIGHUP).

The backend is looked up under binaries/ in the resource directory. In
development mode the resource directory is the working directory (or
--dev-resource-dir); in packaged mode it is the directory holding this
executable (or --resource-dir).`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLauncher,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default: <user config dir>/sidecar-shell/sidecar.toml)")
	pf.StringVar(&flagMode, "mode", "", "Layout to resolve the backend in: development or packaged")
	pf.StringVar(&flagResourceDir, "resource-dir", "", "Packaged resource directory override")
	pf.StringVar(&flagDevResourceDir, "dev-resource-dir", "", "Development resource directory")
	pf.BoolVar(&flagPassPath, "pass-path", false, "Pass --path <resolved> to the backend")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: auto, console, json")
	pf.BoolVar(&flagNoJournal, "no-journal", false, "Do not record runs in the journal")
}

// loadSettings resolves paths, reads the config file and applies flags.
func loadSettings() (*config.Paths, *config.Config, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, nil, err
	}
	path := paths.ConfigPath
	if flagConfig != "" {
		path = flagConfig
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = paths.JournalPath
	}
	return paths, cfg, nil
}

func applyFlags(cfg *config.Config) {
	if flagMode != "" {
		cfg.Mode = flagMode
	}
	if flagResourceDir != "" {
		cfg.ResourceDir = flagResourceDir
	}
	if flagDevResourceDir != "" {
		cfg.DevResourceDir = flagDevResourceDir
	}
	if flagPassPath {
		cfg.PassPath = true
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Log.Format = flagLogFormat
	}
	if flagNoJournal {
		cfg.Journal.Enabled = false
	}
}

// newLogger builds the launcher logger. cfg has been validated.
func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	return logging.New(w, level, format)
}
