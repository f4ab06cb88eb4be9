// SPDX-License-Identifier: MIT
package periph

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// ScriptButton is a button driven from software: the TUI, tests or a
// diagnostic command. It reports pressed for a number of samples.
type ScriptButton struct {
	remaining atomic.Int64
	held      atomic.Bool
}

// Press holds the button for the next ticks samples.
func (b *ScriptButton) Press(ticks int) {
	b.remaining.Store(int64(ticks))
}

// Hold sets a level that persists until changed.
func (b *ScriptButton) Hold(pressed bool) {
	b.held.Store(pressed)
}

// Pressed implements dispatch.Button. Each call consumes one tick.
func (b *ScriptButton) Pressed() bool {
	if b.held.Load() {
		return true
	}
	for {
		n := b.remaining.Load()
		if n <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (b *ScriptButton) Name() string { return "script-button" }

func (b *ScriptButton) Ready() bool { return true }

// GPIOButton reads an active-low push button on a GPIO character device line.
type GPIOButton struct {
	line   *gpiocdev.Line
	name   string
	errors atomic.Uint64
}

// OpenGPIOButton requests offset on chip as a pulled-up input.
func OpenGPIOButton(chip string, offset int) (*GPIOButton, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("streamcore"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s:%d: %w", chip, offset, err)
	}
	return &GPIOButton{line: l, name: fmt.Sprintf("gpio-%s-%d", chip, offset)}, nil
}

// Pressed implements dispatch.Button. A read error counts as released.
func (b *GPIOButton) Pressed() bool {
	v, err := b.line.Value()
	if err != nil {
		b.errors.Add(1)
		return false
	}
	return v == 1
}

// Errors returns the number of failed reads.
func (b *GPIOButton) Errors() uint64 { return b.errors.Load() }

func (b *GPIOButton) Name() string { return b.name }

func (b *GPIOButton) Ready() bool { return b.line != nil }

// Close releases the line.
func (b *GPIOButton) Close() error {
	return b.line.Close()
}
