// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/resolve.go
// Summary: Prints where the backend is expected for the active layout.

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var resolveCheck bool

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the resolved backend path",
	Long: `Print the backend executable path for the selected mode.

With --check, exit non-zero if the file is missing or not executable.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveCheck, "check", false, "Fail if the backend is missing or not executable")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadSettings()
	if err != nil {
		return err
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}
	path, err := resolver.Resolve()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, path)
	if !resolveCheck {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("backend not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("backend path is a directory: %s", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("backend is not executable: %s", path)
	}
	fmt.Fprintf(out, "  Mode: %s\n  Size: %d bytes\n", resolver.Mode, info.Size())
	return nil
}
