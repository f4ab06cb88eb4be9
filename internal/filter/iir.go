// SPDX-License-Identifier: MIT
package filter

import "streamcore/internal/fixed"

// HistoryLen is the number of slots in a biquad history window.
const HistoryLen = 5

// feedbackSlot receives each new output so the next shift moves it into
// the y1 position.
const feedbackSlot = 2

// State is the history of one biquad section. In steady state, right
// before the accumulate, it holds [x0 x1 x2 y1 y2].
type State [HistoryLen]int16

// Update advances the section by one input sample and returns the output.
// The result depends only on (*s, x0): identical inputs give identical
// outputs and identical next states.
func (b *IIRBank) Update(s *State, x0 int16) int16 {
	copy(s[1:], s[:HistoryLen-1])
	s[0] = x0
	y0 := fixed.MACC(0, s[:], b.Coeffs[:], b.Shift)
	s[feedbackSlot] = y0
	return y0
}

// Sections is the number of cascaded IIR sections per channel.
const Sections = 2

// Cascade holds the per-channel, per-section histories of the acquisition
// path.
type Cascade [Channels][Sections]State

// Run feeds x through both sections of channel ch.
func (c *Cascade) Run(b *IIRBank, ch int, x int16) int16 {
	for i := range c[ch] {
		x = b.Update(&c[ch][i], x)
	}
	return x
}
