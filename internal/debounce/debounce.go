// SPDX-License-Identifier: MIT
// Package debounce classifies a sampled button level into short and long
// press events.
package debounce

import "fmt"

// Event is the outcome of one tick.
type Event uint8

const (
	None Event = iota
	Short
	Long
)

func (e Event) String() string {
	switch e {
	case None:
		return "none"
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// Thresholds are tick counts. Short must be below Long.
type Thresholds struct {
	Short int
	Long  int
}

// Validate reports whether the thresholds describe a usable classifier.
func (th Thresholds) Validate() error {
	if th.Short <= 0 {
		return fmt.Errorf("short threshold must be positive, got %d", th.Short)
	}
	if th.Short >= th.Long {
		return fmt.Errorf("short threshold %d must be below long threshold %d", th.Short, th.Long)
	}
	return nil
}

// Classifier is the single-counter state machine evaluated once per tick.
type Classifier struct {
	th Thresholds
	t  int
}

// New returns a classifier with the counter at zero.
func New(th Thresholds) (*Classifier, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{th: th}, nil
}

// Tick advances the state machine with the current input level.
//
// Holding past the long threshold parks the counter at Long+1; release from
// there, or from any count in [Short, Long], drops it back to Short/2 so a
// quick re-press is still recognised. A Long consumes the press: no Short
// follows for the same hold.
func (c *Classifier) Tick(pressed bool) Event {
	th := c.th
	switch {
	case pressed && c.t < th.Long:
		c.t++
	case pressed && c.t == th.Long:
		c.t++
		return Long
	case !pressed && c.t > th.Long:
		c.t = th.Short / 2
	case !pressed && c.t >= th.Short:
		c.t = th.Short / 2
		return Short
	case !pressed && c.t > 0:
		c.t--
	}
	return None
}

// Count returns the current counter value.
func (c *Classifier) Count() int {
	return c.t
}
