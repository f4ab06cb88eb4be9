// SPDX-License-Identifier: MIT
package config

import (
	"streamcore/internal/debounce"
	"streamcore/internal/dispatch"
	"streamcore/internal/log"
)

// BufferLen returns the configured buffer length or the variant default.
func (c *Config) BufferLen() int {
	if c.Stream.BufferLen > 0 {
		return c.Stream.BufferLen
	}
	if c.Variant == dispatch.VariantGenerate {
		return DefaultGenerateBuffer
	}
	return DefaultAcquireBuffer
}

// Thresholds returns the debounce thresholds.
func (c *Config) Thresholds() debounce.Thresholds {
	return debounce.Thresholds{Short: c.Control.ShortTicks, Long: c.Control.LongTicks}
}

// FaultPolicy parses the configured transfer-fault policy.
func (c *Config) FaultPolicy() (dispatch.FaultPolicy, error) {
	return dispatch.ParseFaultPolicy(c.Control.FaultPolicy)
}

// InitialMode returns the mode at startup.
func (c *Config) InitialMode() dispatch.Mode {
	return dispatch.Mode{FIR: c.Control.InitialFIR, IIR: c.Control.InitialIIR}
}

// Direction returns the stream direction of the configured variant.
func (c *Config) Direction() dispatch.Direction {
	if c.Variant == dispatch.VariantGenerate {
		return dispatch.Output
	}
	return dispatch.Input
}

// Level returns the parsed log level, Debug when debug is set.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	lvl, _ := log.ParseLevel(c.LogLevel)
	return lvl
}
