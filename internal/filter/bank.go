// SPDX-License-Identifier: MIT
/*
Package filter implements the fixed-point filter engine: a stateless FIR
correlator over one buffer and a five-slot saturating biquad recurrence.

Banks are immutable tables. A Mode selects one FIR bank and one IIR bank
independently; both IIR sections of a channel share the selected bank.
*/
package filter

import "fmt"

// Channels is the number of output channels derived from one input buffer.
const Channels = 2

// Taps is the FIR length. It equals the acquisition buffer length.
const Taps = 16

// FIRBank is one selectable FIR coefficient set. Taps[0] and Taps[1] are
// phase-offset correlators producing the two output channels.
type FIRBank struct {
	Name   string
	Taps   [Channels][Taps]int16
	Shift  uint
	Offset int16
}

// IIRBank is one biquad section: [b0 b1 b2 a1 a2] with the feedback terms
// already negated, so y = b0·x0 + b1·x1 + b2·x2 + a1·y1 + a2·y2.
type IIRBank struct {
	Name   string
	Coeffs [HistoryLen]int16
	Shift  uint
}

// FIRBanks lists the available FIR banks in selection order.
var FIRBanks = [...]FIRBank{
	{
		Name: "fundamental",
		Taps: [Channels][Taps]int16{
			{0, 1247, 2304, 3011, 3259, 3011, 2304, 1247, 0, -1247, -2304, -3011, -3259, -3011, -2304, -1247},
			{3259, 3011, 2304, 1247, 0, -1247, -2304, -3011, -3259, -3011, -2304, -1247, 0, 1247, 2304, 3011},
		},
		Shift: 11,
	},
	{
		Name: "second-harmonic",
		Taps: [Channels][Taps]int16{
			{0, 2304, 3259, 2304, 0, -2304, -3259, -2304, 0, 2304, 3259, 2304, 0, -2304, -3259, -2304},
			{3259, 2304, 0, -2304, -3259, -2304, 0, 2304, 3259, 2304, 0, -2304, -3259, -2304, 0, 2304},
		},
		Shift: 11,
	},
	{
		Name: "third-harmonic",
		Taps: [Channels][Taps]int16{
			{0, 3011, 2304, -1247, -3259, -1247, 2304, 3011, 0, -3011, -2304, 1247, 3259, 1247, -2304, -3011},
			{3259, 1247, -2304, -3011, 0, 3011, 2304, -1247, -3259, -1247, 2304, 3011, 0, -3011, -2304, 1247},
		},
		Shift: 11,
	},
	{
		// Fundamental plus a third of the third harmonic.
		Name: "square",
		Taps: [Channels][Taps]int16{
			{0, 2251, 3073, 2595, 2173, 2595, 3073, 2251, 0, -2251, -3073, -2595, -2173, -2595, -3073, -2251},
			{2173, 2595, 3073, 2251, 0, -2251, -3073, -2595, -2173, -2595, -3073, -2251, 0, 2251, 3073, 2595},
		},
		Shift: 11,
	},
	{
		// Newest sample, unity gain.
		Name: "passthrough",
		Taps: [Channels][Taps]int16{
			{15: 1 << 11},
			{15: 1 << 11},
		},
		Shift: 11,
	},
}

// IIRBanks lists the available IIR banks in selection order. Coefficients
// are Q2.13; the bandpass sections are constant-peak designs with Q = 2.
var IIRBanks = [...]IIRBank{
	{Name: "fundamental", Coeffs: [HistoryLen]int16{715, 0, -715, 13815, -6761}, Shift: 13},
	{Name: "second-harmonic", Coeffs: [HistoryLen]int16{1231, 0, -1231, 9845, -5731}, Shift: 13},
	{Name: "third-harmonic", Coeffs: [HistoryLen]int16{1537, 0, -1537, 5093, -5118}, Shift: 13},
	{Name: "square", Coeffs: [HistoryLen]int16{165, 329, 165, 12788, -5254}, Shift: 13},
	{Name: "dc-block", Coeffs: [HistoryLen]int16{8192, -8192, 0, 8151, 0}, Shift: 13},
}

// FIRBankByName returns the index of the named FIR bank.
func FIRBankByName(name string) (int, error) {
	for i := range FIRBanks {
		if FIRBanks[i].Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown FIR bank %q", name)
}

// IIRBankByName returns the index of the named IIR bank.
func IIRBankByName(name string) (int, error) {
	for i := range IIRBanks {
		if IIRBanks[i].Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown IIR bank %q", name)
}
