// SPDX-License-Identifier: MIT
/*
Package board is the one-time bring-up shared by every pipeline variant:
validate the clock tree, derive the flash latency and the SysTick reload,
print the banner and wait for every peripheral to report ready.

A peripheral that never becomes ready is a configuration fault and the
pipeline must not start.
*/
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamcore/internal/log"
	"streamcore/pkg/build"
)

// ErrNotReady is wrapped when a peripheral misses the ready deadline.
var ErrNotReady = errors.New("peripheral not ready")

// Peripheral is anything bring-up waits for.
type Peripheral interface {
	Name() string
	Ready() bool
}

// Printer is the diagnostic text channel.
type Printer interface {
	Printf(format string, args ...any)
}

// Config drives Bringup.
type Config struct {
	Clock        Clock
	TickRate     int
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// Report is what bring-up derived.
type Report struct {
	SYSCLK        uint32
	HCLK          uint32
	PCLK1         uint32
	PCLK2         uint32
	WaitStates    uint32
	SysTickReload uint32
	TickPeriod    time.Duration
}

// Bringup validates cfg and waits for periphs. out may be nil.
func Bringup(ctx context.Context, cfg Config, out Printer, periphs ...Peripheral) (*Report, error) {
	if out == nil {
		out = logPrinter{}
	}

	for _, line := range build.Get().Banner() {
		out.Printf("%s", line)
	}

	if err := cfg.Clock.Validate(); err != nil {
		out.Printf(" Initialising clocks... FAILED")
		return nil, err
	}
	hclk := cfg.Clock.HCLK()
	reload, err := SysTickReload(hclk, cfg.TickRate)
	if err != nil {
		out.Printf(" Initialising clocks... FAILED")
		return nil, err
	}
	r := &Report{
		SYSCLK:        cfg.Clock.SYSCLK(),
		HCLK:          hclk,
		PCLK1:         cfg.Clock.PCLK1(),
		PCLK2:         cfg.Clock.PCLK2(),
		WaitStates:    WaitStates(hclk, cfg.Clock.Supply),
		SysTickReload: reload,
		TickPeriod:    time.Second / time.Duration(cfg.TickRate),
	}
	out.Printf(" Initialising clocks... OK (SYSCLK %d MHz, %d wait states, SysTick reload %d)",
		r.SYSCLK/1_000_000, r.WaitStates, r.SysTickReload)

	if err := WaitReady(ctx, cfg.ReadyTimeout, cfg.PollInterval, periphs...); err != nil {
		out.Printf(" Waiting for peripherals... FAILED")
		return nil, err
	}
	out.Printf(" Ready.")
	return r, nil
}

// WaitReady polls until every peripheral is ready or timeout expires. A
// zero timeout checks once.
func WaitReady(ctx context.Context, timeout, poll time.Duration, periphs ...Peripheral) error {
	if poll <= 0 {
		poll = time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		pending := notReady(periphs)
		if len(pending) == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w after %s: %s", ErrNotReady, timeout, strings.Join(pending, ", "))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrNotReady, strings.Join(pending, ", "), ctx.Err())
		case <-time.After(poll):
		}
	}
}

func notReady(periphs []Peripheral) []string {
	var names []string
	for _, p := range periphs {
		if !p.Ready() {
			names = append(names, p.Name())
		}
	}
	return names
}

type logPrinter struct{}

func (logPrinter) Printf(format string, args ...any) {
	log.Infof(format, args...)
}
