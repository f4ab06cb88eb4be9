// SPDX-License-Identifier: MIT
package board

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClock(t *testing.T) {
	c := DefaultClock
	require.NoError(t, c.Validate())
	assert.Equal(t, uint32(2_000_000), c.VCOIn())
	assert.Equal(t, uint32(336_000_000), c.VCOOut())
	assert.Equal(t, uint32(168_000_000), c.SYSCLK())
	assert.Equal(t, uint32(42_000_000), c.PCLK1())
	assert.Equal(t, uint32(84_000_000), c.PCLK2())
	assert.Equal(t, uint32(5), WaitStates(c.HCLK(), c.Supply))
}

func TestClockValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Clock)
	}{
		{"zero oscillator", func(c *Clock) { c.HSI = 0 }},
		{"PLLM too small", func(c *Clock) { c.PLLM = 1 }},
		{"PLLN too large", func(c *Clock) { c.PLLN = 500 }},
		{"odd PLLP", func(c *Clock) { c.PLLP = 3 }},
		{"PLLQ zero", func(c *Clock) { c.PLLQ = 0 }},
		{"AHB prescaler", func(c *Clock) { c.AHBDiv = 3 }},
		{"APB1 prescaler", func(c *Clock) { c.APB1Div = 32 }},
		{"APB2 prescaler", func(c *Clock) { c.APB2Div = 0 }},
		{"supply", func(c *Clock) { c.Supply = 5000 }},
		{"PLL input too fast", func(c *Clock) { c.PLLM = 4 }},
		{"VCO too slow", func(c *Clock) { c.PLLM, c.PLLN = 16, 60 }},
		{"SYSCLK too fast", func(c *Clock) { c.PLLN = 200 }},
		{"APB1 too fast", func(c *Clock) { c.APB1Div = 2 }},
		{"APB2 too fast", func(c *Clock) { c.APB2Div = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultClock
			tt.modify(&c)
			assert.ErrorIs(t, c.Validate(), ErrClock)
		})
	}
}

func TestWaitStates(t *testing.T) {
	tests := []struct {
		hclk, mv, want uint32
	}{
		{16_000_000, 3300, 0},
		{30_000_000, 3300, 0},
		{30_000_001, 3300, 1},
		{168_000_000, 3300, 5},
		{180_000_000, 3300, 5},
		{168_000_000, 2500, 6},
		{168_000_000, 2200, 7},
		{168_000_000, 1800, 8},
		{0, 3300, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%dmV", tt.hclk, tt.mv), func(t *testing.T) {
			assert.Equal(t, tt.want, WaitStates(tt.hclk, tt.mv))
		})
	}
}

func TestSysTickReload(t *testing.T) {
	r, err := SysTickReload(168_000_000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(21000), r)

	_, err = SysTickReload(168_000_000, 0)
	assert.ErrorIs(t, err, ErrClock)

	// 168 MHz / 8 at 1 Hz exceeds 24 bits.
	_, err = SysTickReload(168_000_000, 1)
	assert.ErrorIs(t, err, ErrClock)

	_, err = SysTickReload(8, 1000)
	assert.ErrorIs(t, err, ErrClock)
}

type fakePeripheral struct {
	name  string
	ready atomic.Bool
}

func (p *fakePeripheral) Name() string { return p.name }
func (p *fakePeripheral) Ready() bool  { return p.ready.Load() }

type lines []string

func (l *lines) Printf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

func TestBringup(t *testing.T) {
	p := &fakePeripheral{name: "dma"}
	p.ready.Store(true)

	var out lines
	r, err := Bringup(context.Background(), Config{
		Clock:        DefaultClock,
		TickRate:     1000,
		ReadyTimeout: time.Second,
	}, &out, p)
	require.NoError(t, err)

	assert.Equal(t, uint32(168_000_000), r.SYSCLK)
	assert.Equal(t, uint32(21000), r.SysTickReload)
	assert.Equal(t, time.Millisecond, r.TickPeriod)
	assert.Equal(t, " Ready.", out[len(out)-1])
	assert.Contains(t, out[len(out)-2], "SYSCLK 168 MHz, 5 wait states")
	assert.Len(t, out, 6)
}

func TestBringupWaitsForLatePeripheral(t *testing.T) {
	p := &fakePeripheral{name: "late"}
	time.AfterFunc(10*time.Millisecond, func() { p.ready.Store(true) })

	_, err := Bringup(context.Background(), Config{
		Clock:        DefaultClock,
		TickRate:     1000,
		ReadyTimeout: 2 * time.Second,
	}, &lines{}, p)
	assert.NoError(t, err)
}

func TestBringupNotReady(t *testing.T) {
	ok := &fakePeripheral{name: "tick"}
	ok.ready.Store(true)
	stuck := &fakePeripheral{name: "adc"}

	var out lines
	_, err := Bringup(context.Background(), Config{
		Clock:        DefaultClock,
		TickRate:     1000,
		ReadyTimeout: 20 * time.Millisecond,
	}, &out, ok, stuck)

	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "adc")
	assert.NotContains(t, err.Error(), "tick")
	assert.Contains(t, out[len(out)-1], "FAILED")
}

func TestBringupBadClock(t *testing.T) {
	c := DefaultClock
	c.PLLP = 5
	_, err := Bringup(context.Background(), Config{Clock: c, TickRate: 1000}, &lines{})
	assert.ErrorIs(t, err, ErrClock)
}

func TestWaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitReady(ctx, time.Hour, time.Millisecond, &fakePeripheral{name: "x"})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, context.Canceled)
}
