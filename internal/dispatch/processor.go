// SPDX-License-Identifier: MIT
package dispatch

import (
	"fmt"

	"streamcore/internal/filter"
	"streamcore/internal/modulator"
)

// Direction tells which side of the peripheral drives a processor.
type Direction uint8

const (
	// Input processors consume a filled acquisition buffer and produce one
	// output frame for the paired output.
	Input Direction = iota
	// Output processors refill a drained output buffer.
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// FrameLen is the number of samples in an Input processor's output frame.
const FrameLen = filter.Channels

// Processor is the per-buffer callback of one firmware variant. Process
// runs inside the completion handler: it must not block, allocate or keep
// references to buf past its return.
type Processor interface {
	Name() string
	Direction() Direction
	Process(buf, frame []int16, m Mode)
}

// Variant names.
const (
	VariantBringup  = "bringup"
	VariantAcquire  = "acquire"
	VariantGenerate = "generate"
)

// Variants lists the selectable variant names.
var Variants = []string{VariantBringup, VariantAcquire, VariantGenerate}

// NewProcessor returns the processor for a variant.
func NewProcessor(variant string) (Processor, error) {
	switch variant {
	case VariantBringup:
		return &Bringup{}, nil
	case VariantAcquire:
		return &Acquisition{}, nil
	case VariantGenerate:
		return NewGeneration(nil), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}

// Bringup loops the newest input sample to both output channels.
type Bringup struct{}

func (*Bringup) Name() string         { return VariantBringup }
func (*Bringup) Direction() Direction { return Input }

func (*Bringup) Process(buf, frame []int16, _ Mode) {
	last := buf[len(buf)-1]
	for ch := range frame {
		frame[ch] = last
	}
}

// Acquisition runs the FIR correlator and two cascaded IIR sections per
// channel. The filter histories are owned here and touched by nothing else.
type Acquisition struct {
	cascade filter.Cascade
}

func (*Acquisition) Name() string         { return VariantAcquire }
func (*Acquisition) Direction() Direction { return Input }

func (a *Acquisition) Process(buf, frame []int16, m Mode) {
	fir := &filter.FIRBanks[m.FIR]
	iir := &filter.IIRBanks[m.IIR]
	for ch := range filter.Channels {
		frame[ch] = a.cascade.Run(iir, ch, fir.Apply(ch, buf))
	}
}

// Generation refills the output buffer from the noise-shaping modulator.
type Generation struct {
	mod *modulator.Modulator
}

// NewGeneration returns a generation processor over a custom table.
func NewGeneration(table []uint32) *Generation {
	return &Generation{mod: modulator.New(table)}
}

func (*Generation) Name() string         { return VariantGenerate }
func (*Generation) Direction() Direction { return Output }

func (g *Generation) Process(buf, _ []int16, _ Mode) {
	g.mod.Fill(buf)
}

// TableIndex returns the waveform entry the next buffer will use.
func (g *Generation) TableIndex() int {
	return g.mod.Index()
}
