// SPDX-License-Identifier: MIT
package periph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"streamcore/internal/dispatch"
	"streamcore/internal/stream"
)

// SimConfig configures a simulated transfer engine.
type SimConfig struct {
	Direction  dispatch.Direction
	Period     time.Duration // one buffer period; zero runs free
	Frames     uint64        // transfers before Run returns; zero is unbounded
	FaultEvery uint64        // inject a transfer fault every n transfers; zero disables
}

// SimStream emulates a circular double-buffer DMA channel. Each Step
// fills (Input) or drains (Output) the hardware-owned buffer, signals
// completion on the exchange and raises the stream line.
type SimStream struct {
	cfg SimConfig
	x   *stream.Exchange
	src Source
	out SampleSink
	irq Raiser

	pcm []int16

	inject    atomic.Bool
	fault     atomic.Uint32
	transfers atomic.Uint64
	armed     atomic.Bool
}

// NewSimStream builds the engine. src is used for Input, out for Output;
// out defaults to Discard.
func NewSimStream(cfg SimConfig, x *stream.Exchange, src Source, out SampleSink) (*SimStream, error) {
	if cfg.Direction == dispatch.Input && src == nil {
		return nil, errors.New("periph: input stream needs a source")
	}
	if out == nil {
		out = Discard{}
	}
	return &SimStream{
		cfg: cfg,
		x:   x,
		src: src,
		out: out,
		pcm: make([]int16, x.Len()),
	}, nil
}

// Attach connects the interrupt line and arms the channel.
func (s *SimStream) Attach(irq Raiser) {
	s.irq = irq
	s.armed.Store(irq != nil)
}

func (s *SimStream) Name() string { return "sim-" + s.cfg.Direction.String() }

// Ready reports whether the channel is armed.
func (s *SimStream) Ready() bool { return s.armed.Load() }

// InjectFault makes the next transfer fail.
func (s *SimStream) InjectFault() { s.inject.Store(true) }

// Fault implements dispatch.FaultSource.
func (s *SimStream) Fault() dispatch.FaultKind {
	return dispatch.FaultKind(s.fault.Load())
}

// Transfers returns the number of transfers attempted.
func (s *SimStream) Transfers() uint64 { return s.transfers.Load() }

// Step performs one buffer transfer. It returns io.EOF when the source is
// exhausted and any error the interrupt handler reports.
func (s *SimStream) Step() error {
	if s.irq == nil {
		return errors.New("periph: stream not attached")
	}
	n := s.transfers.Add(1)

	if s.inject.Swap(false) || (s.cfg.FaultEvery > 0 && n%s.cfg.FaultEvery == 0) {
		kind := dispatch.Overrun
		if s.cfg.Direction == dispatch.Output {
			kind = dispatch.Underrun
		}
		s.fault.Store(uint32(kind))
		return s.irq.Raise(dispatch.LineFault)
	}

	hw := s.x.HardwareBuffer()
	switch s.cfg.Direction {
	case dispatch.Input:
		if err := s.src.Read(hw); err != nil {
			return err
		}
	case dispatch.Output:
		for i, v := range hw {
			s.pcm[i] = PWMToPCM(v)
		}
		if err := s.out.WriteSamples(s.pcm); err != nil {
			return fmt.Errorf("periph: drain: %w", err)
		}
	}

	s.x.Complete()
	return s.irq.Raise(dispatch.LineStream)
}

// Run steps until ctx is done, the frame limit is reached or the source
// ends. The last two return nil.
func (s *SimStream) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.Period > 0 {
		t := time.NewTicker(s.cfg.Period)
		defer t.Stop()
		tick = t.C
	}

	for {
		if s.cfg.Frames > 0 && s.transfers.Load() >= s.cfg.Frames {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Step(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
