// SPDX-License-Identifier: MIT
package dispatch

import (
	"fmt"
	"sync/atomic"

	"streamcore/internal/filter"
)

// Mode selects one FIR bank and one IIR bank.
type Mode struct {
	FIR uint8
	IIR uint8
}

func (m Mode) String() string {
	return fmt.Sprintf("fir=%s iir=%s", filter.FIRBanks[m.FIR].Name, filter.IIRBanks[m.IIR].Name)
}

// ModeSelector is the one cell shared between the tick handler (sole
// writer) and the buffer handler (sole reader). A reader may see the
// previous mode for one buffer; it never sees a torn value.
type ModeSelector struct {
	v atomic.Uint32
}

// NewModeSelector returns a selector set to m.
func NewModeSelector(m Mode) (*ModeSelector, error) {
	if int(m.FIR) >= len(filter.FIRBanks) {
		return nil, fmt.Errorf("FIR mode %d out of range [0, %d)", m.FIR, len(filter.FIRBanks))
	}
	if int(m.IIR) >= len(filter.IIRBanks) {
		return nil, fmt.Errorf("IIR mode %d out of range [0, %d)", m.IIR, len(filter.IIRBanks))
	}
	s := &ModeSelector{}
	s.Store(m)
	return s, nil
}

// Load returns the current mode.
func (s *ModeSelector) Load() Mode {
	v := s.v.Load()
	return Mode{FIR: uint8(v), IIR: uint8(v >> 8)}
}

// Store replaces the current mode.
func (s *ModeSelector) Store(m Mode) {
	s.v.Store(uint32(m.FIR) | uint32(m.IIR)<<8)
}

// NextFIR advances the FIR bank, wrapping, and returns the new mode.
func (s *ModeSelector) NextFIR() Mode {
	m := s.Load()
	m.FIR = uint8((int(m.FIR) + 1) % len(filter.FIRBanks))
	s.Store(m)
	return m
}

// NextIIR advances the IIR bank, wrapping, and returns the new mode.
func (s *ModeSelector) NextIIR() Mode {
	m := s.Load()
	m.IIR = uint8((int(m.IIR) + 1) % len(filter.IIRBanks))
	s.Store(m)
	return m
}
