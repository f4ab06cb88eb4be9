// SPDX-License-Identifier: MIT
package periph

import (
	"sync"

	"streamcore/internal/dispatch"
	"streamcore/internal/fixed"
)

// HoldSink receives one stereo frame per processed buffer and holds it
// for a whole buffer period, the way the output register of a DAC keeps
// its last value until rewritten.
type HoldSink struct {
	mu     sync.Mutex
	latest [dispatch.FrameLen]int16

	out   SampleSink
	block []int16
}

// NewHoldSink expands every frame into a block of n interleaved frames
// for out. out may be nil when only Latest and Fill are used.
func NewHoldSink(n int, out SampleSink) *HoldSink {
	h := &HoldSink{out: out}
	if out != nil {
		h.block = make([]int16, n*dispatch.FrameLen)
	}
	return h
}

// WriteFrame implements dispatch.Sink.
func (h *HoldSink) WriteFrame(frame []int16) {
	h.mu.Lock()
	copy(h.latest[:], frame)
	h.mu.Unlock()

	if h.out == nil {
		return
	}
	for i := 0; i < len(h.block); i += dispatch.FrameLen {
		copy(h.block[i:i+dispatch.FrameLen], frame)
	}
	// Sink errors surface through the sink's own Close.
	_ = h.out.WriteSamples(h.block)
}

// Latest returns the most recent frame.
func (h *HoldSink) Latest() [dispatch.FrameLen]int16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Fill writes the held frame into an interleaved stereo buffer.
func (h *HoldSink) Fill(out []int16) {
	f := h.Latest()
	for i := 0; i+dispatch.FrameLen <= len(out); i += dispatch.FrameLen {
		copy(out[i:], f[:])
	}
}

// PWMToPCM maps a duty value centred on the midpoint of an 8-bit
// modulator period onto signed 16-bit PCM.
func PWMToPCM(v int16) int16 {
	return fixed.Clamp16((int64(v) - 128) << 8)
}
