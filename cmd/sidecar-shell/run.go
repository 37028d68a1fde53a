// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/sidecar-shell/run.go
// Summary: Default command: start the backend and kill it on close.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/framegrace/sidecar/internal/instance"
	"github.com/framegrace/sidecar/internal/journal"
	"github.com/framegrace/sidecar/internal/supervisor"
)

// drainGrace bounds how long we wait for the last stderr lines after a kill.
const drainGrace = 2 * time.Second

var (
	runExitWithBackend bool
	runLockWait        time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the backend and supervise it until close (default)",
	Args:  cobra.NoArgs,
	RunE:  runLauncher,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&runExitWithBackend, "exit-with-backend", false, "Quit when the backend exits on its own")
		c.Flags().DurationVar(&runLockWait, "lock-wait", 0, "How long to wait for another launcher to release the instance lock")
	}
	rootCmd.AddCommand(runCmd)
}

func runLauncher(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg)

	if err := paths.EnsureConfigDir(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lock, err := instance.Acquire(ctx, paths.LockPath, runLockWait)
	if err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	var recorder supervisor.Recorder
	if cfg.Journal.Enabled {
		j, err := journal.OpenWithConfig(journal.Config{
			DBPath:    cfg.Journal.Path,
			KeepLines: cfg.Journal.KeepLines,
		})
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Journal.Path).Msg("Journal unavailable; runs will not be recorded")
		} else {
			defer j.Close()
			recorder = j
		}
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}
	sup := supervisor.New(supervisor.Config{
		Resolver:     resolver,
		Logger:       log,
		PassPath:     cfg.PassPath,
		Stdout:       os.Stdout,
		MaxLineWidth: cfg.MaxLineWidth,
		Recorder:     recorder,
		PIDFile:      supervisor.NewPIDFile(paths.PIDPath),
	})

	closeRequested := watchCloseSignals(log, sup)

	if err := sup.Start(ctx); err != nil {
		return err
	}

	if runExitWithBackend {
		select {
		case <-closeRequested:
		case <-sup.Done():
			log.Info().Msg("Backend gone; exiting")
		}
	} else {
		<-closeRequested
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainGrace)
	defer cancel()
	if err := sup.Wait(drainCtx); err != nil {
		log.Debug().Msg("Stderr relay still open at exit")
	}
	log.Info().Str("state", sup.State().String()).Msg("Launcher stopped")
	return nil
}

// watchCloseSignals treats SIGINT, SIGTERM and SIGHUP as the window-close
// request. The returned channel is closed after Shutdown has run.
func watchCloseSignals(log zerolog.Logger, sup *supervisor.Supervisor) <-chan struct{} {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	closed := make(chan struct{})
	go func() {
		sig := <-sigCh
		signal.Stop(sigCh)
		log.Info().Str("signal", sig.String()).Msg("Close requested")
		sup.Shutdown()
		close(closed)
	}()
	return closed
}
