// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/main.go
// Summary: Desktop-shell entry point that supervises the backend sidecar.
// Usage: Run `sidecar-shell` to launch the backend and keep it alive until close.

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
