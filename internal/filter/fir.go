// SPDX-License-Identifier: MIT
package filter

import "streamcore/internal/fixed"

// Apply correlates buf against the taps of channel ch and returns one
// saturated output sample. It keeps no state between buffers.
func (b *FIRBank) Apply(ch int, buf []int16) int16 {
	return fixed.MACC(b.Offset, buf, b.Taps[ch][:], b.Shift)
}
