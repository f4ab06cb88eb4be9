// SPDX-License-Identifier: MIT
package modulator

// LFSR is a 16-bit Fibonacci shift register with feedback from bits
// 15, 14, 12 and 3 (x^16 + x^15 + x^13 + x^4 + 1). From any nonzero seed it
// visits all 65535 nonzero states before repeating.
type LFSR uint16

// Period is the sequence length of a maximal 16-bit register.
const Period = 1<<16 - 1

// Next advances the register one step and returns the bit shifted in.
func (r *LFSR) Next() uint16 {
	v := uint16(*r)
	bit := (v>>15 ^ v>>14 ^ v>>12 ^ v>>3) & 1
	*r = LFSR(v<<1 | bit)
	return bit
}
