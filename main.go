// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"streamcore/cmd"
	"streamcore/internal/config"
	"streamcore/internal/dispatch"
	"streamcore/internal/engine"
	"streamcore/internal/log"
	"streamcore/internal/periph"
	"streamcore/internal/tui"
	"streamcore/pkg/build"
)

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Allocate the engine for the selected variant
//
// 2. Concurrent Phase (Hot Path):
//   - Bring the board up and arm the stream
//   - Service buffer, tick and fault interrupts
//   - Show the live monitor if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the device stream and finalise the recording
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("build: %v, using development defaults", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, run); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.SetLevel(cfg.Level())

	if cfg.Stream.Source == config.SourcePortAudio {
		if err := periph.Initialize(); err != nil {
			return err
		}
		defer periph.Terminate()
	}

	if cfg.TUI && cfg.Control.Button == config.ButtonNone {
		cfg.Control.Button = config.ButtonScript
	}

	e, err := engine.New(cfg, engine.Options{Quiet: cfg.TUI})
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- e.Run(ctx)
		close(stopped)
	}()

	if cfg.TUI {
		var presser tui.Presser
		if b := e.Button(); b != nil {
			presser = b
		}
		if err := tui.Run(tui.Config{
			Snapshot:   e.Snapshot,
			Button:     presser,
			ShortPress: cfg.Control.ShortTicks,
			LongPress:  cfg.Control.LongTicks + 1,
			Done:       stopped,
		}); err != nil {
			log.Errorf("tui: %v", err)
		}
		cancel()
	}

	runErr := <-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := e.Close(); err != nil {
		log.Errorf("Error closing engine: %v", err)
	}

	if errors.Is(runErr, dispatch.ErrHalted) || halted(runErr) {
		log.Errorf("fatal fault, halted")
	}
	return runErr
}

func halted(err error) bool {
	var tf *dispatch.TransferFaultError
	var ui *dispatch.UnexpectedInterruptError
	return errors.As(err, &tf) || errors.As(err, &ui)
}
