// SPDX-License-Identifier: MIT
package periph

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"streamcore/internal/dispatch"
	"streamcore/internal/stream"
)

// HostConfig selects host devices for a HostStream.
type HostConfig struct {
	InputDevice  int
	OutputDevice int
	SampleRate   float64
	LowLatency   bool
}

// HostStream uses a PortAudio duplex or output stream as the transfer
// engine. The device callback plays the part of the DMA completion
// interrupt: it moves one buffer through the exchange and raises the
// stream line before returning.
type HostStream struct {
	cfg  HostConfig
	dir  dispatch.Direction
	x    *stream.Exchange
	hold *HoldSink
	irq  Raiser

	in  *portaudio.DeviceInfo
	out *portaudio.DeviceInfo
	pa  *portaudio.Stream

	fault   atomic.Uint32
	running atomic.Bool

	errOnce sync.Once
	err     error
	done    chan struct{}
}

// NewHostStream resolves the devices for dir. hold supplies the analog
// output of an Input stream and may be nil for silence.
func NewHostStream(cfg HostConfig, dir dispatch.Direction, x *stream.Exchange, hold *HoldSink) (*HostStream, error) {
	h := &HostStream{cfg: cfg, dir: dir, x: x, hold: hold, done: make(chan struct{})}

	var err error
	if dir == dispatch.Input {
		if h.in, err = InputDevice(cfg.InputDevice); err != nil {
			return nil, fmt.Errorf("failed to resolve input device: %w", err)
		}
	}
	if h.out, err = OutputDevice(cfg.OutputDevice); err != nil {
		return nil, fmt.Errorf("failed to resolve output device: %w", err)
	}
	return h, nil
}

// Attach connects the interrupt line.
func (h *HostStream) Attach(irq Raiser) { h.irq = irq }

func (h *HostStream) Name() string { return "portaudio-" + h.dir.String() }

// Ready reports whether the device stream is running.
func (h *HostStream) Ready() bool { return h.running.Load() }

// Fault implements dispatch.FaultSource.
func (h *HostStream) Fault() dispatch.FaultKind {
	return dispatch.FaultKind(h.fault.Load())
}

// Done is closed when the handler reports a fatal error.
func (h *HostStream) Done() <-chan struct{} { return h.done }

// Err returns the fatal error that closed Done.
func (h *HostStream) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *HostStream) params() portaudio.StreamParameters {
	latency := func(d *portaudio.DeviceInfo, in bool) time.Duration {
		switch {
		case in && h.cfg.LowLatency:
			return d.DefaultLowInputLatency
		case in:
			return d.DefaultHighInputLatency
		case h.cfg.LowLatency:
			return d.DefaultLowOutputLatency
		default:
			return d.DefaultHighOutputLatency
		}
	}

	p := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   h.out,
			Channels: 1,
			Latency:  latency(h.out, false),
		},
		FramesPerBuffer: h.x.Len(),
		SampleRate:      h.cfg.SampleRate,
	}
	if h.dir == dispatch.Input {
		p.Input = portaudio.StreamDeviceParameters{
			Device:   h.in,
			Channels: 1,
			Latency:  latency(h.in, true),
		}
		p.Output.Channels = dispatch.FrameLen
	}
	return p
}

// Start opens and starts the device stream.
func (h *HostStream) Start() error {
	if h.irq == nil {
		return errors.New("periph: stream not attached")
	}

	var (
		pa  *portaudio.Stream
		err error
	)
	if h.dir == dispatch.Input {
		pa, err = portaudio.OpenStream(h.params(), h.acquire)
	} else {
		pa, err = portaudio.OpenStream(h.params(), h.generate)
	}
	if err != nil {
		return fmt.Errorf("failed to open host stream: %w", err)
	}
	if err := pa.Start(); err != nil {
		pa.Close()
		return fmt.Errorf("failed to start host stream: %w", err)
	}
	h.pa = pa
	h.running.Store(true)
	return nil
}

// Stop stops and closes the device stream.
func (h *HostStream) Stop() error {
	if h.pa == nil {
		return nil
	}
	h.running.Store(false)
	if err := h.pa.Stop(); err != nil {
		return err
	}
	if err := h.pa.Close(); err != nil {
		return err
	}
	h.pa = nil
	return nil
}

func (h *HostStream) acquire(in, out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if flags&portaudio.InputOverflow != 0 {
		h.fault.Store(uint32(dispatch.Overrun))
		h.raise(dispatch.LineFault)
	}

	copy(h.x.HardwareBuffer(), in)
	h.x.Complete()
	h.raise(dispatch.LineStream)

	if h.hold != nil && h.Err() == nil {
		h.hold.Fill(out)
	} else {
		clear(out)
	}
}

func (h *HostStream) generate(out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if flags&portaudio.OutputUnderflow != 0 {
		h.fault.Store(uint32(dispatch.Underrun))
		h.raise(dispatch.LineFault)
	}

	hw := h.x.HardwareBuffer()
	for i := range out {
		out[i] = PWMToPCM(hw[i%len(hw)])
	}
	h.x.Complete()
	h.raise(dispatch.LineStream)
}

func (h *HostStream) raise(line dispatch.Line) {
	if h.Err() != nil {
		return
	}
	if err := h.irq.Raise(line); err != nil {
		h.errOnce.Do(func() {
			h.err = err
			close(h.done)
		})
	}
}
