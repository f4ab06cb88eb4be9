// SPDX-License-Identifier: MIT
/*
Package modulator synthesizes the PWM waveform stream with a third-order
error-feedback loop.

Each 24-bit table magnitude is split into an 8-bit integer part, which is
emitted directly, and a 16-bit fraction, which is pushed through three
cascaded 16-bit accumulators. The carries out of those accumulators form a
small correction (in [-2, 3]) added to the integer part, so the long-run
mean of the emitted samples equals magnitude/65536 while the error is
shaped toward high frequencies. A dither bit from the LFSR is folded into
the fraction LSB on every step to break up idle tones.

The accumulators, previous-carry cells and register are never reset after
construction; clearing them between buffers would bias the output.
*/
package modulator

// Seed is the initial register value.
const Seed LFSR = 1

const (
	fracBits = 16
	fracMask = 1<<fracBits - 1
)

// State is the persistent modulator state.
type State struct {
	Reg LFSR
	Acc [3]uint32 // 16-bit accumulators
	C2  uint32    // previous carry of stage 2
	C3  uint32    // previous carry of stage 3
}

// Modulator walks the waveform table one entry per buffer.
type Modulator struct {
	state State
	index int
	table []uint32
}

// New returns a modulator over table starting at entry 0 with the fixed
// seed. A nil table selects Wave.
func New(table []uint32) *Modulator {
	if len(table) == 0 {
		table = Wave[:]
	}
	return &Modulator{
		state: State{Reg: Seed},
		table: table,
	}
}

// Step emits one output sample for magnitude mag.
//
// The correction is c1 + (c2 - c2') + (c3 - c3'), primes marking the
// previous step. Stage 1 is the undifferenced carry; stages 2 and 3 enter
// as first differences, which sum to zero over time, so the mean output
// stays at mag/65536.
func (s *State) Step(mag uint32) int16 {
	dither := uint32(s.Reg.Next())
	x := (mag & fracMask) ^ dither

	var c [3]uint32
	in := x
	for i := range s.Acc {
		sum := s.Acc[i] + in
		c[i] = sum >> fracBits
		s.Acc[i] = sum & fracMask
		in = s.Acc[i]
	}

	corr := int32(c[0]) + int32(c[1]) - int32(s.C2) + int32(c[2]) - int32(s.C3)
	s.C2, s.C3 = c[1], c[2]

	return int16(int32(mag>>fracBits) + corr)
}

// Fill writes one buffer of samples, all derived from the current table
// entry, then advances the entry.
func (m *Modulator) Fill(buf []int16) {
	mag := m.table[m.index]
	for i := range buf {
		buf[i] = m.state.Step(mag)
	}
	m.index++
	if m.index == len(m.table) {
		m.index = 0
	}
}

// Index returns the table entry the next Fill will use.
func (m *Modulator) Index() int {
	return m.index
}

// State returns a copy of the loop state.
func (m *Modulator) State() State {
	return m.state
}
