// SPDX-License-Identifier: MIT
package diag

import (
	charm "github.com/charmbracelet/log"

	"streamcore/internal/log"
)

// Console writes diagnostics through the structured logger.
type Console struct {
	logger *charm.Logger
}

// NewConsole returns a console channel.
func NewConsole() *Console {
	return &Console{logger: log.Component("diag")}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Attached() bool { return true }

func (c *Console) Send(msg Message) error {
	if msg.Snapshot != nil {
		s := msg.Snapshot
		c.logger.Info("stats",
			"variant", s.Variant,
			"fir", s.Mode.FIRName,
			"iir", s.Mode.IIRName,
			"processed", s.Stats.Processed,
			"dropped", s.Stats.Stream.Dropped,
			"faults", s.Stats.Faults)
		return nil
	}
	c.logger.Info(msg.Text, "kind", msg.Kind)
	return nil
}

func (c *Console) Close() error { return nil }
