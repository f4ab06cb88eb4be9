// SPDX-License-Identifier: MIT
package periph

import (
	"context"
	"time"

	"streamcore/internal/dispatch"
)

// Ticker raises the tick line at a fixed rate.
type Ticker struct {
	period time.Duration
	irq    Raiser
}

// NewTicker returns a Ticker for rate ticks per second.
func NewTicker(rate int, irq Raiser) *Ticker {
	return &Ticker{period: time.Second / time.Duration(rate), irq: irq}
}

func (t *Ticker) Name() string { return "systick" }

func (t *Ticker) Ready() bool { return t.irq != nil && t.period > 0 }

// Run raises the tick line until ctx is done or the handler fails.
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.period)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			if err := t.irq.Raise(dispatch.LineTick); err != nil {
				return err
			}
		}
	}
}
