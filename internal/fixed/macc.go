// SPDX-License-Identifier: MIT
/*
Package fixed holds the saturating multiply-accumulate primitive shared by
the FIR and IIR stages.

All arithmetic is integer. Products of two int16 values are summed in an
int64 accumulator, so the only lossy step is the final clamp back into the
int16 range. Saturation is the anti-wraparound policy, not an error.
*/
package fixed

import "math"

// Clamp16 saturates v into the signed 16-bit range.
func Clamp16(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// MACC computes clamp(((seed << shift) + dot(x, a)) >> shift).
//
// x and a must have the same length; the shorter length is used if they
// don't. The right shift is arithmetic, so negative sums round toward
// negative infinity exactly as the hardware ASR does.
func MACC(seed int16, x, a []int16, shift uint) int16 {
	acc := int64(seed) << shift
	acc += Dot(x, a)
	return Clamp16(acc >> shift)
}

// Dot returns the unshifted dot product of x and a.
func Dot(x, a []int16) int64 {
	var acc int64
	n := min(len(x), len(a))
	for i := range n {
		acc += int64(x[i]) * int64(a[i])
	}
	return acc
}
