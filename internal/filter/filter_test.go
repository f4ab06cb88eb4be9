// SPDX-License-Identifier: MIT
package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sineBuffer(amplitude float64, cycles int) []int16 {
	buf := make([]int16, Taps)
	for k := range buf {
		buf[k] = int16(math.Round(amplitude * math.Sin(2*math.Pi*float64(cycles*k)/Taps)))
	}
	return buf
}

func TestFundamentalSelfCorrelationSaturates(t *testing.T) {
	bank := &FIRBanks[0]
	require.Equal(t, "fundamental", bank.Name)

	buf := make([]int16, Taps)
	copy(buf, bank.Taps[0][:])

	// 84960346 >> 11 = 41484, clamped.
	assert.Equal(t, int16(32767), bank.Apply(0, buf))
}

func TestFIRSelectsHarmonic(t *testing.T) {
	buf := sineBuffer(2000, 2)

	fund, err := FIRBankByName("fundamental")
	require.NoError(t, err)
	second, err := FIRBankByName("second-harmonic")
	require.NoError(t, err)

	assert.InDelta(t, 0, FIRBanks[fund].Apply(0, buf), 2)
	assert.Equal(t, int16(25456), FIRBanks[second].Apply(0, buf))
}

func TestFIRPassthrough(t *testing.T) {
	idx, err := FIRBankByName("passthrough")
	require.NoError(t, err)

	buf := sineBuffer(12000, 1)
	buf[Taps-1] = -4321
	for ch := range Channels {
		assert.Equal(t, int16(-4321), FIRBanks[idx].Apply(ch, buf))
	}
}

func TestBankLookupUnknown(t *testing.T) {
	_, err := FIRBankByName("nope")
	assert.Error(t, err)
	_, err = IIRBankByName("nope")
	assert.Error(t, err)
}

func TestIIRHistoryLayout(t *testing.T) {
	bank := IIRBank{Coeffs: [HistoryLen]int16{1 << 13}, Shift: 13}
	var s State

	assert.Equal(t, int16(10), bank.Update(&s, 10))
	assert.Equal(t, State{10, 0, 10, 0, 0}, s)

	assert.Equal(t, int16(20), bank.Update(&s, 20))
	assert.Equal(t, State{20, 10, 20, 10, 0}, s)

	assert.Equal(t, int16(30), bank.Update(&s, 30))
	// Slots 3 and 4 carry the previous two outputs.
	assert.Equal(t, State{30, 20, 30, 20, 10}, s)
}

func TestIIRUpdateIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bank := &IIRBanks[rapid.IntRange(0, len(IIRBanks)-1).Draw(t, "bank")]
		var s State
		for i := range s {
			s[i] = rapid.Int16().Draw(t, "slot")
		}
		x := rapid.Int16().Draw(t, "x")

		a, b := s, s
		ya := bank.Update(&a, x)
		yb := bank.Update(&b, x)

		assert.Equal(t, ya, yb)
		assert.Equal(t, a, b)
	})
}

func TestIIRDCBlock(t *testing.T) {
	idx, err := IIRBankByName("dc-block")
	require.NoError(t, err)

	var s State
	var y int16
	for range 2000 {
		y = IIRBanks[idx].Update(&s, 10000)
	}
	assert.InDelta(t, 0, y, 1)
}

func TestIIRBandpassGain(t *testing.T) {
	bank := &IIRBanks[0]

	run := func(cycles int) int16 {
		var s State
		var peak int16
		for k := range 2000 {
			x := int16(math.Round(8000 * math.Sin(2*math.Pi*float64(cycles*k)/16)))
			y := bank.Update(&s, x)
			if k >= 2000-160 && y > peak {
				peak = y
			}
		}
		return peak
	}

	assert.InDelta(t, 8000, run(1), 100, "centre frequency should pass near unity")
	assert.Less(t, run(4), int16(1000), "off-centre tone should be attenuated")
}

func TestCascadeRunsBothSections(t *testing.T) {
	bank := IIRBank{Coeffs: [HistoryLen]int16{1 << 12}, Shift: 13} // gain 1/2
	var c Cascade

	assert.Equal(t, int16(250), c.Run(&bank, 1, 1000))
	assert.Equal(t, int16(1000), c[1][0][0])
	assert.Equal(t, int16(500), c[1][1][0])
	assert.Equal(t, State{}, c[0][0], "other channel untouched")
}

func TestFilterHotPath(t *testing.T) {
	buf := sineBuffer(9000, 1)
	var c Cascade

	allocs := testing.AllocsPerRun(100, func() {
		for ch := range Channels {
			v := FIRBanks[0].Apply(ch, buf)
			_ = c.Run(&IIRBanks[0], ch, v)
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in filter hot path, got %.1f", allocs)
	}
}

func BenchmarkAcquisitionBuffer(b *testing.B) {
	buf := sineBuffer(9000, 1)
	var c Cascade

	b.ReportAllocs()
	for b.Loop() {
		for ch := range Channels {
			v := FIRBanks[0].Apply(ch, buf)
			_ = c.Run(&IIRBanks[0], ch, v)
		}
	}
}
