// SPDX-License-Identifier: MIT
package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestClamp16(t *testing.T) {
	tests := []struct {
		in   int64
		want int16
	}{
		{0, 0},
		{32767, 32767},
		{32768, 32767},
		{-32768, -32768},
		{-32769, -32768},
		{1 << 40, 32767},
		{-(1 << 40), -32768},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp16(tt.in), "Clamp16(%d)", tt.in)
	}
}

func TestMACCFormula(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(t, "n")
		x := rapid.SliceOfN(rapid.Int16(), n, n).Draw(t, "x")
		a := rapid.SliceOfN(rapid.Int16(), n, n).Draw(t, "a")
		seed := rapid.Int16().Draw(t, "seed")
		shift := rapid.UintRange(0, 15).Draw(t, "shift")

		var dot int64
		for i := range x {
			dot += int64(x[i]) * int64(a[i])
		}
		want := ((int64(seed) << shift) + dot) >> shift
		if want > math.MaxInt16 {
			want = math.MaxInt16
		}
		if want < math.MinInt16 {
			want = math.MinInt16
		}

		assert.Equal(t, int16(want), MACC(seed, x, a, shift))
	})
}

func TestMACCSaturates(t *testing.T) {
	x := []int16{32767, 32767, 32767, 32767}
	assert.Equal(t, int16(32767), MACC(0, x, x, 0))

	neg := []int16{-32768, -32768, -32768, -32768}
	assert.Equal(t, int16(-32768), MACC(0, x, neg, 0))
}

func TestMACCArithmeticShift(t *testing.T) {
	// -1 >> 1 stays -1 with an arithmetic shift.
	assert.Equal(t, int16(-1), MACC(0, []int16{-1}, []int16{1}, 1))
	// Seed survives the shift round trip unchanged.
	assert.Equal(t, int16(-1234), MACC(-1234, nil, nil, 11))
}

func TestMACCHotPath(t *testing.T) {
	x := make([]int16, 16)
	a := make([]int16, 16)
	for i := range x {
		x[i] = int16(i * 1000)
		a[i] = int16(-i * 100)
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = MACC(3, x, a, 11)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in MACC, got %.1f", allocs)
	}
}

func BenchmarkMACC(b *testing.B) {
	x := make([]int16, 16)
	a := make([]int16, 16)
	for i := range x {
		x[i] = int16(i * 997)
		a[i] = int16(3259 - i*300)
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = MACC(0, x, a, 11)
	}
}
