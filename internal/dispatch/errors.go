// SPDX-License-Identifier: MIT
package dispatch

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by every handler once a fatal fault has stopped
// the dispatcher.
var ErrHalted = errors.New("dispatch: halted after fatal fault")

// UnexpectedInterruptError reports an interrupt line with no handler.
type UnexpectedInterruptError struct {
	Line Line
}

func (e *UnexpectedInterruptError) Error() string {
	return fmt.Sprintf("unexpected interrupt on line %s", e.Line)
}

// FaultKind is a hardware-reported transfer fault.
type FaultKind uint8

const (
	Overrun FaultKind = iota + 1
	Underrun
)

func (k FaultKind) String() string {
	switch k {
	case Overrun:
		return "overrun"
	case Underrun:
		return "underrun"
	default:
		return fmt.Sprintf("fault(%d)", uint8(k))
	}
}

// TransferFaultError is returned when a transfer fault occurs under the
// halt policy.
type TransferFaultError struct {
	Kind FaultKind
}

func (e *TransferFaultError) Error() string {
	return fmt.Sprintf("transfer fault: %s", e.Kind)
}

// FaultPolicy decides what a transfer fault does.
type FaultPolicy uint8

const (
	// Rearm clears the fault and restarts the transfer, losing one frame.
	Rearm FaultPolicy = iota
	// Halt treats a transfer fault as fatal.
	Halt
)

// ParseFaultPolicy converts a config string to a FaultPolicy.
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch s {
	case "", "rearm":
		return Rearm, nil
	case "halt":
		return Halt, nil
	default:
		return Rearm, fmt.Errorf("unknown fault policy %q", s)
	}
}

func (p FaultPolicy) String() string {
	if p == Halt {
		return "halt"
	}
	return "rearm"
}
