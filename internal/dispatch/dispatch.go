// SPDX-License-Identifier: MIT
/*
Package dispatch is the interrupt layer: the single owner of the per-variant
processing state, invoked once per hardware event.

	Raise(LineStream)  buffer completion: acknowledge, acquire, process, hand
	                   the frame to the paired output, release
	Raise(LineTick)    sample the button, classify, update the mode
	Raise(LineFault)   transfer fault: re-arm (or halt, by policy)

Every handler runs to completion and never blocks. Handler state (filter
histories, modulator loop, debounce counter) is owned by the Dispatcher and
reached from exactly one handler; the mode cell is the only value crossing
between the two asynchronous sources.
*/
package dispatch

import (
	"fmt"
	"sync/atomic"

	"streamcore/internal/debounce"
	"streamcore/internal/stream"
)

// Line identifies an interrupt source.
type Line uint8

const (
	LineStream Line = iota
	LineTick
	LineFault
)

func (l Line) String() string {
	switch l {
	case LineStream:
		return "stream"
	case LineTick:
		return "tick"
	case LineFault:
		return "fault"
	default:
		return fmt.Sprintf("line(%d)", uint8(l))
	}
}

// Stream is the peripheral contract the dispatcher consumes.
type Stream interface {
	ActiveBuffer() int
	Acknowledge() bool
	Acquire() (int, []int16, bool)
	Release() error
	Rearm()
	Stats() stream.Stats
}

// Sink receives the output frame of an Input processor.
type Sink interface {
	WriteFrame(frame []int16)
}

// Button is sampled once per tick.
type Button interface {
	Pressed() bool
}

// FaultSource reports the kind of the transfer fault being signalled.
type FaultSource interface {
	Fault() FaultKind
}

// EventKind classifies a Notify call.
type EventKind uint8

const (
	ModeChanged EventKind = iota
	FaultCleared
	FatalFault
)

// Event is delivered to the Notifier. It carries values only so it can be
// built without allocation on the handler path.
type Event struct {
	Kind  EventKind
	Mode  Mode
	Press debounce.Event
	Fault FaultKind
	Line  Line
}

// Notifier receives handler events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// Config wires a Dispatcher.
type Config struct {
	Stream      Stream
	Processor   Processor
	Sink        Sink        // paired output for Input processors
	Button      Button      // nil disables the tick handler's input
	Faults      FaultSource // nil reports every fault as an overrun
	Mode        *ModeSelector
	Debounce    debounce.Thresholds
	FaultPolicy FaultPolicy
	Notifier    Notifier
}

// Stats are dispatcher counters plus the stream's own.
type Stats struct {
	Processed uint64
	Spurious  uint64
	Missed    uint64
	Ticks     uint64
	Shorts    uint64
	Longs     uint64
	Faults    uint64
	Stream    stream.Stats
}

// Dispatcher owns all handler state for one variant.
type Dispatcher struct {
	stream   Stream
	proc     Processor
	sink     Sink
	button   Button
	faults   FaultSource
	mode     *ModeSelector
	debounce *debounce.Classifier
	policy   FaultPolicy
	notifier Notifier

	frame [FrameLen]int16

	halted atomic.Bool

	processed atomic.Uint64
	spurious  atomic.Uint64
	missed    atomic.Uint64
	ticks     atomic.Uint64
	shorts    atomic.Uint64
	longs     atomic.Uint64
	faultsN   atomic.Uint64
}

// New builds a Dispatcher. All state is allocated here, once.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Stream == nil {
		return nil, fmt.Errorf("dispatch: stream is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("dispatch: processor is required")
	}
	if cfg.Mode == nil {
		m, err := NewModeSelector(Mode{})
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}
	classifier, err := debounce.New(cfg.Debounce)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return &Dispatcher{
		stream:   cfg.Stream,
		proc:     cfg.Processor,
		sink:     cfg.Sink,
		button:   cfg.Button,
		faults:   cfg.Faults,
		mode:     cfg.Mode,
		debounce: classifier,
		policy:   cfg.FaultPolicy,
		notifier: cfg.Notifier,
	}, nil
}

// Raise is the vector table: it runs the handler for line.
func (d *Dispatcher) Raise(line Line) error {
	switch line {
	case LineStream:
		return d.OnBufferComplete()
	case LineTick:
		_, err := d.OnTick()
		return err
	case LineFault:
		return d.OnFault()
	default:
		return d.OnUnexpected(line)
	}
}

// OnBufferComplete processes the buffer that just finished transfer.
func (d *Dispatcher) OnBufferComplete() error {
	if d.halted.Load() {
		return ErrHalted
	}
	if !d.stream.Acknowledge() {
		d.spurious.Add(1)
		return nil
	}

	_, buf, ok := d.stream.Acquire()
	if !ok {
		// The completion was dropped by the exchange; nothing fresh to do.
		d.missed.Add(1)
		return nil
	}

	m := d.mode.Load()
	d.proc.Process(buf, d.frame[:], m)
	if d.proc.Direction() == Input && d.sink != nil {
		d.sink.WriteFrame(d.frame[:])
	}

	if err := d.stream.Release(); err != nil {
		return fmt.Errorf("dispatch: release: %w", err)
	}
	d.processed.Add(1)
	return nil
}

// OnTick samples the button and applies any classified press to the mode.
func (d *Dispatcher) OnTick() (debounce.Event, error) {
	if d.halted.Load() {
		return debounce.None, ErrHalted
	}
	d.ticks.Add(1)

	pressed := d.button != nil && d.button.Pressed()
	ev := d.debounce.Tick(pressed)

	var m Mode
	switch ev {
	case debounce.Short:
		d.shorts.Add(1)
		m = d.mode.NextFIR()
	case debounce.Long:
		d.longs.Add(1)
		m = d.mode.NextIIR()
	default:
		return ev, nil
	}

	d.notify(Event{Kind: ModeChanged, Mode: m, Press: ev, Line: LineTick})
	return ev, nil
}

// OnFault handles a hardware-reported transfer fault.
func (d *Dispatcher) OnFault() error {
	if d.halted.Load() {
		return ErrHalted
	}
	d.faultsN.Add(1)

	kind := Overrun
	if d.faults != nil {
		kind = d.faults.Fault()
	}

	if d.policy == Halt {
		d.halted.Store(true)
		d.notify(Event{Kind: FatalFault, Fault: kind, Line: LineFault})
		return &TransferFaultError{Kind: kind}
	}

	d.stream.Rearm()
	d.notify(Event{Kind: FaultCleared, Fault: kind, Line: LineFault})
	return nil
}

// OnUnexpected halts on an interrupt with no handler.
func (d *Dispatcher) OnUnexpected(line Line) error {
	d.halted.Store(true)
	d.notify(Event{Kind: FatalFault, Line: line})
	return &UnexpectedInterruptError{Line: line}
}

// Halted reports whether a fatal fault has stopped the dispatcher.
func (d *Dispatcher) Halted() bool {
	return d.halted.Load()
}

// Mode returns the current mode.
func (d *Dispatcher) Mode() Mode {
	return d.mode.Load()
}

// Processor returns the variant's processor.
func (d *Dispatcher) Processor() Processor {
	return d.proc
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Processed: d.processed.Load(),
		Spurious:  d.spurious.Load(),
		Missed:    d.missed.Load(),
		Ticks:     d.ticks.Load(),
		Shorts:    d.shorts.Load(),
		Longs:     d.longs.Load(),
		Faults:    d.faultsN.Load(),
		Stream:    d.stream.Stats(),
	}
}

func (d *Dispatcher) notify(ev Event) {
	if d.notifier != nil {
		d.notifier.Notify(ev)
	}
}
