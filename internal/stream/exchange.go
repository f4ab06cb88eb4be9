// SPDX-License-Identifier: MIT
/*
Package stream implements the double-buffer exchange between a peripheral
transfer engine and the software handler.

Ownership lives in one atomic word holding the index of the buffer the
peripheral owns plus the state of the other buffer (idle, ready or busy).
Every transition is a single compare-and-swap, so the two sides never
observe the same index as theirs and no lock is taken on either path.

	peripheral: Complete()  idle|ready -> ready (flip)   busy -> drop
	software:   Acquire()   ready -> busy
	            Release()   busy -> idle
*/
package stream

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotOwned is returned by Release when software holds no buffer.
var ErrNotOwned = errors.New("stream: no buffer held by software")

// Owner identifies who may touch a buffer.
type Owner uint8

const (
	Hardware Owner = iota
	Software
)

func (o Owner) String() string {
	if o == Hardware {
		return "hardware"
	}
	return "software"
}

// State of the buffer not owned by the peripheral.
type State uint32

const (
	Idle  State = iota // free, the peripheral takes it on the next flip
	Ready              // completed transfer, waiting for software
	Busy               // being processed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Stats are monotonically increasing counters.
type Stats struct {
	Completed uint64 // completion signals seen
	Flips     uint64 // completions that changed ownership
	Dropped   uint64 // completions while software was still busy
	Stale     uint64 // ready buffers overwritten before software took them
	Faults    uint64 // transfer faults re-armed
}

// Exchange is one double-buffered stream.
type Exchange struct {
	bufs [2][]int16
	word atomic.Uint32 // bit 0: hardware index, bits 1-2: State

	pending atomic.Bool

	completed atomic.Uint64
	flips     atomic.Uint64
	dropped   atomic.Uint64
	stale     atomic.Uint64
	faults    atomic.Uint64
}

func pack(hw int, s State) uint32 { return uint32(hw&1) | uint32(s)<<1 }

func unpack(w uint32) (int, State) { return int(w & 1), State(w >> 1) }

// New allocates both buffers of length n. The peripheral starts on buffer 0.
func New(n int) *Exchange {
	if n <= 0 {
		panic(fmt.Sprintf("stream: buffer length must be positive, got %d", n))
	}
	x := &Exchange{}
	x.bufs[0] = make([]int16, n)
	x.bufs[1] = make([]int16, n)
	return x
}

// Len returns the buffer length.
func (x *Exchange) Len() int {
	return len(x.bufs[0])
}

// HardwareBuffer returns the buffer the peripheral currently owns. Only the
// peripheral side may use it, and only until its next Complete.
func (x *Exchange) HardwareBuffer() []int16 {
	hw, _ := unpack(x.word.Load())
	return x.bufs[hw]
}

// ActiveBuffer returns the index owned by the peripheral.
func (x *Exchange) ActiveBuffer() int {
	hw, _ := unpack(x.word.Load())
	return hw
}

// Owner reports who owns buffer idx right now.
func (x *Exchange) Owner(idx int) Owner {
	if idx == x.ActiveBuffer() {
		return Hardware
	}
	return Software
}

// Snapshot returns the peripheral index and the software-side state from a
// single load.
func (x *Exchange) Snapshot() (hw int, s State) {
	return unpack(x.word.Load())
}

// Complete is called by the peripheral when the transfer on its buffer
// finishes. It returns the completed index and whether ownership flipped.
//
// If software is still busy with the other buffer the deadline was missed:
// the peripheral keeps its buffer, the interval is lost and a dropped frame
// is counted. If the other buffer was ready but never taken it is
// overwritten by the flip and counted stale.
func (x *Exchange) Complete() (int, bool) {
	x.completed.Add(1)
	defer x.pending.Store(true)

	for {
		old := x.word.Load()
		hw, s := unpack(old)
		if s == Busy {
			x.dropped.Add(1)
			return hw, false
		}
		if x.word.CompareAndSwap(old, pack(hw^1, Ready)) {
			if s == Ready {
				x.stale.Add(1)
			}
			x.flips.Add(1)
			return hw, true
		}
	}
}

// Acknowledge clears the completion flag and reports whether one was set.
func (x *Exchange) Acknowledge() bool {
	return x.pending.Swap(false)
}

// Pending reports whether a completion has not been acknowledged yet.
func (x *Exchange) Pending() bool {
	return x.pending.Load()
}

// Acquire hands the ready buffer to software. ok is false when no buffer
// is ready, which happens when a completion was dropped.
func (x *Exchange) Acquire() (idx int, buf []int16, ok bool) {
	for {
		old := x.word.Load()
		hw, s := unpack(old)
		if s != Ready {
			return 0, nil, false
		}
		if x.word.CompareAndSwap(old, pack(hw, Busy)) {
			idx = hw ^ 1
			return idx, x.bufs[idx], true
		}
	}
}

// Release returns the software buffer so the peripheral can take it.
func (x *Exchange) Release() error {
	for {
		old := x.word.Load()
		hw, s := unpack(old)
		if s != Busy {
			return ErrNotOwned
		}
		if x.word.CompareAndSwap(old, pack(hw, Idle)) {
			return nil
		}
	}
}

// Rearm clears a transfer fault and counts the interrupted interval as a
// dropped frame. The peripheral restarts on the buffer it owned with its
// contents intact: an output stream still drains what software wrote.
func (x *Exchange) Rearm() {
	x.faults.Add(1)
	x.dropped.Add(1)
	x.pending.Store(false)
}

// Stats returns a snapshot of the counters.
func (x *Exchange) Stats() Stats {
	return Stats{
		Completed: x.completed.Load(),
		Flips:     x.flips.Load(),
		Dropped:   x.dropped.Load(),
		Stale:     x.stale.Load(),
		Faults:    x.faults.Load(),
	}
}
