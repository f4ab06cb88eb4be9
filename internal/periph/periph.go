// SPDX-License-Identifier: MIT
/*
Package periph holds the peripheral side of the stream contract: the
engines that fill or drain the hardware-owned buffer of a double-buffer
exchange at a fixed cadence and raise a completion interrupt.

Three engines are provided:
  - SimStream paces transfers from a Source or into a SampleSink with a
    timer (or free-running for offline runs) and can inject faults.
  - HostStream drives the exchange from a PortAudio device callback.
  - Ticker raises the periodic tick line.

Inputs for the tick handler (GPIOButton, ScriptButton) live here too.
*/
package periph

import "streamcore/internal/dispatch"

// Raiser is the interrupt controller as seen from a peripheral.
type Raiser interface {
	Raise(line dispatch.Line) error
}

// Source supplies acquisition samples. Read fills buf completely or
// returns an error; io.EOF ends the stream.
type Source interface {
	Read(buf []int16) error
}

// SampleSink consumes a block of samples drained by the peripheral.
type SampleSink interface {
	WriteSamples(samples []int16) error
}

// Discard is a SampleSink that drops everything.
type Discard struct{}

func (Discard) WriteSamples([]int16) error { return nil }
