// SPDX-License-Identifier: MIT
package board

import (
	"errors"
	"fmt"
	"slices"
)

// ErrClock is wrapped by every clock-tree validation failure.
var ErrClock = errors.New("invalid clock configuration")

// Device limits for a Cortex-M4 part in the 180 MHz class.
const (
	MaxSYSCLK      = 180_000_000
	MaxPCLK1       = 45_000_000
	MaxPCLK2       = 90_000_000
	minVCOIn       = 1_000_000
	maxVCOIn       = 2_000_000
	minVCOOut      = 100_000_000
	maxVCOOut      = 432_000_000
	SysTickMaxLoad = 0xFFFFFF
)

// Clock describes the clock tree: an HSI oscillator through the main PLL
// (divide by M, multiply by N, divide by P) to SYSCLK, then the bus
// prescalers.
type Clock struct {
	HSI     uint32 `yaml:"hsi"`
	PLLM    uint32 `yaml:"pll_m"`
	PLLN    uint32 `yaml:"pll_n"`
	PLLP    uint32 `yaml:"pll_p"`
	PLLQ    uint32 `yaml:"pll_q"`
	AHBDiv  uint32 `yaml:"ahb_div"`
	APB1Div uint32 `yaml:"apb1_div"`
	APB2Div uint32 `yaml:"apb2_div"`
	Supply  uint32 `yaml:"supply_mv"`
}

// DefaultClock is 16 MHz / 8 × 168 / 2 = 168 MHz at 3.3 V, with APB1 at
// /4 and APB2 at /2.
var DefaultClock = Clock{
	HSI:     16_000_000,
	PLLM:    8,
	PLLN:    168,
	PLLP:    2,
	PLLQ:    4,
	AHBDiv:  1,
	APB1Div: 4,
	APB2Div: 2,
	Supply:  3300,
}

// VCOIn returns the PLL input frequency.
func (c Clock) VCOIn() uint32 { return c.HSI / c.PLLM }

// VCOOut returns the PLL VCO frequency.
func (c Clock) VCOOut() uint32 { return c.VCOIn() * c.PLLN }

// SYSCLK returns the system clock.
func (c Clock) SYSCLK() uint32 { return c.VCOOut() / c.PLLP }

// HCLK returns the AHB clock.
func (c Clock) HCLK() uint32 { return c.SYSCLK() / c.AHBDiv }

// PCLK1 returns the APB1 clock.
func (c Clock) PCLK1() uint32 { return c.HCLK() / c.APB1Div }

// PCLK2 returns the APB2 clock.
func (c Clock) PCLK2() uint32 { return c.HCLK() / c.APB2Div }

// Validate checks every divider against its allowed range and every
// derived frequency against the device limits.
func (c Clock) Validate() error {
	switch {
	case c.HSI == 0:
		return fmt.Errorf("%w: oscillator frequency is zero", ErrClock)
	case c.PLLM < 2 || c.PLLM > 63:
		return fmt.Errorf("%w: PLLM %d outside 2..63", ErrClock, c.PLLM)
	case c.PLLN < 50 || c.PLLN > 432:
		return fmt.Errorf("%w: PLLN %d outside 50..432", ErrClock, c.PLLN)
	case !slices.Contains([]uint32{2, 4, 6, 8}, c.PLLP):
		return fmt.Errorf("%w: PLLP %d not one of 2, 4, 6, 8", ErrClock, c.PLLP)
	case c.PLLQ < 2 || c.PLLQ > 15:
		return fmt.Errorf("%w: PLLQ %d outside 2..15", ErrClock, c.PLLQ)
	case !slices.Contains([]uint32{1, 2, 4, 8, 16, 64, 128, 256, 512}, c.AHBDiv):
		return fmt.Errorf("%w: AHB prescaler %d", ErrClock, c.AHBDiv)
	case !slices.Contains([]uint32{1, 2, 4, 8, 16}, c.APB1Div):
		return fmt.Errorf("%w: APB1 prescaler %d", ErrClock, c.APB1Div)
	case !slices.Contains([]uint32{1, 2, 4, 8, 16}, c.APB2Div):
		return fmt.Errorf("%w: APB2 prescaler %d", ErrClock, c.APB2Div)
	case c.Supply < 1800 || c.Supply > 3600:
		return fmt.Errorf("%w: supply %d mV outside 1800..3600", ErrClock, c.Supply)
	}

	if in := c.VCOIn(); in < minVCOIn || in > maxVCOIn {
		return fmt.Errorf("%w: PLL input %d Hz outside 1..2 MHz", ErrClock, in)
	}
	if out := c.VCOOut(); out < minVCOOut || out > maxVCOOut {
		return fmt.Errorf("%w: VCO %d Hz outside 100..432 MHz", ErrClock, out)
	}
	if s := c.SYSCLK(); s > MaxSYSCLK {
		return fmt.Errorf("%w: SYSCLK %d Hz above %d", ErrClock, s, MaxSYSCLK)
	}
	if p := c.PCLK1(); p > MaxPCLK1 {
		return fmt.Errorf("%w: APB1 %d Hz above %d", ErrClock, p, MaxPCLK1)
	}
	if p := c.PCLK2(); p > MaxPCLK2 {
		return fmt.Errorf("%w: APB2 %d Hz above %d", ErrClock, p, MaxPCLK2)
	}
	return nil
}

// WaitStates returns the flash latency needed at hclk for a supply in
// millivolts: one wait state per started step of 30, 24, 22 or 20 MHz
// depending on the voltage range.
func WaitStates(hclk, supply uint32) uint32 {
	var step uint32
	switch {
	case supply >= 2700:
		step = 30_000_000
	case supply >= 2400:
		step = 24_000_000
	case supply >= 2100:
		step = 22_000_000
	default:
		step = 20_000_000
	}
	if hclk == 0 {
		return 0
	}
	return (hclk - 1) / step
}

// SysTickReload returns the reload value for a tick rate when the timer
// runs from HCLK/8.
func SysTickReload(hclk uint32, rate int) (uint32, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("%w: tick rate %d", ErrClock, rate)
	}
	reload := hclk / 8 / uint32(rate)
	if reload == 0 || reload > SysTickMaxLoad {
		return 0, fmt.Errorf("%w: SysTick reload %d outside 1..%d", ErrClock, reload, SysTickMaxLoad)
	}
	return reload, nil
}
