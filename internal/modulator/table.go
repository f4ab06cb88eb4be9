// SPDX-License-Identifier: MIT
package modulator

// TableLen is the number of waveform entries per period.
const TableLen = 36

// Wave is one period of a raised cosine, 2^23·(1 + 0.96·cos(2πi/36)), as
// unsigned 24-bit magnitudes. The top 8 bits drive the PWM compare value;
// the low 16 bits are carried by the modulator.
var Wave = [TableLen]uint32{
	0xfae147, 0xf9035f, 0xf3782c, 0xea6acd, 0xde21ac, 0xcefc59,
	0xbd70a3, 0xaa0705, 0x95567f, 0x800000, 0x6aa980, 0x55f8fa,
	0x428f5c, 0x3103a6, 0x21de53, 0x159532, 0x0c87d3, 0x06fca0,
	0x051eb8, 0x06fca0, 0x0c87d3, 0x159532, 0x21de53, 0x3103a6,
	0x428f5c, 0x55f8fa, 0x6aa980, 0x7fffff, 0x95567f, 0xaa0705,
	0xbd70a3, 0xcefc59, 0xde21ac, 0xea6acd, 0xf3782c, 0xf9035f,
}
