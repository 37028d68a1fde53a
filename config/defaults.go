// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default launcher configuration.

package config

import (
	"github.com/framegrace/sidecar/internal/journal"
	"github.com/framegrace/sidecar/internal/logging"
	"github.com/framegrace/sidecar/internal/supervisor"
)

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Binary: supervisor.DefaultBinary,
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatAuto),
		},
		Journal: JournalConfig{
			Enabled:   true,
			KeepLines: journal.DefaultKeepLines,
		},
	}
}
