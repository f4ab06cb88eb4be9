// SPDX-License-Identifier: MIT
/*
Package diag is the best-effort diagnostic output of the pipeline.

Nothing on the interrupt path depends on it: handlers hand events to the
Hub without blocking, and the Hub formats and forwards them to whichever
channels are attached (console, WebSocket clients) at a bounded rate.
Periodic statistics go out the same way, and a UDPPublisher can stream
them in binary form.
*/
package diag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"streamcore/internal/dispatch"
	"streamcore/internal/filter"
	"streamcore/internal/log"
)

// Channel is one diagnostic output path.
type Channel interface {
	Name() string
	// Attached reports whether anyone is listening. Messages to a detached
	// channel are skipped.
	Attached() bool
	Send(msg Message) error
	Close() error
}

// Snapshot is the state reported periodically.
type Snapshot struct {
	Variant string         `json:"variant"`
	Mode    ModeNames      `json:"mode"`
	Stats   dispatch.Stats `json:"stats"`
	Halted  bool           `json:"halted"`

	Pending      bool   `json:"pending"`       // completion not yet serviced
	ButtonErrors uint64 `json:"button_errors"` // failed GPIO reads
	Recorded     uint64 `json:"recorded"`      // samples written to the recording
}

// ModeNames is a mode as bank indices and names.
type ModeNames struct {
	FIR     uint8  `json:"fir"`
	IIR     uint8  `json:"iir"`
	FIRName string `json:"fir_name"`
	IIRName string `json:"iir_name"`
}

// NamesOf resolves the bank names of m.
func NamesOf(m dispatch.Mode) ModeNames {
	return ModeNames{
		FIR:     m.FIR,
		IIR:     m.IIR,
		FIRName: filter.FIRBanks[m.FIR].Name,
		IIRName: filter.IIRBanks[m.IIR].Name,
	}
}

// Message is what a channel receives.
type Message struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Message kinds.
const (
	KindText  = "text"
	KindEvent = "event"
	KindStats = "stats"
)

// HubConfig tunes a Hub.
type HubConfig struct {
	Queue     int           // pending events; further ones are dropped
	PerSecond float64       // sustained message rate per Hub
	Burst     int           // message burst
	Interval  time.Duration // stats period; zero disables
}

// DefaultHubConfig is used for zero fields.
var DefaultHubConfig = HubConfig{
	Queue:     64,
	PerSecond: 20,
	Burst:     10,
	Interval:  time.Second,
}

// Hub fans messages out to channels. It implements dispatch.Notifier.
type Hub struct {
	cfg      HubConfig
	events   chan dispatch.Event
	limiter  *rate.Limiter
	snapshot func() Snapshot

	mu       sync.Mutex
	channels []Channel

	dropped  atomic.Uint64
	limited  atomic.Uint64
	failures atomic.Uint64
}

// NewHub returns a Hub. snapshot supplies periodic stats and may be nil.
func NewHub(cfg HubConfig, snapshot func() Snapshot, channels ...Channel) *Hub {
	if cfg.Queue <= 0 {
		cfg.Queue = DefaultHubConfig.Queue
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultHubConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultHubConfig.Burst
	}
	return &Hub{
		cfg:      cfg,
		events:   make(chan dispatch.Event, cfg.Queue),
		limiter:  rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		snapshot: snapshot,
		channels: channels,
	}
}

// Add attaches another channel.
func (h *Hub) Add(c Channel) {
	h.mu.Lock()
	h.channels = append(h.channels, c)
	h.mu.Unlock()
}

// Notify queues ev without blocking. A full queue drops the event.
func (h *Hub) Notify(ev dispatch.Event) {
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Printf sends a text message to every attached channel, bypassing the
// rate limit. Use it for one-shot output such as the banner.
func (h *Hub) Printf(format string, args ...any) {
	h.broadcast(Message{Time: time.Now(), Kind: KindText, Text: fmt.Sprintf(format, args...)})
}

// Dropped returns the number of events lost to a full queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Limited returns the number of messages suppressed by the rate limit.
func (h *Hub) Limited() uint64 { return h.limited.Load() }

// Run forwards queued events and periodic stats until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if h.cfg.Interval > 0 && h.snapshot != nil {
		t := time.NewTicker(h.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.drain()
			return ctx.Err()
		case ev := <-h.events:
			h.forward(EventMessage(ev))
		case <-tick:
			s := h.snapshot()
			h.forward(Message{Time: time.Now(), Kind: KindStats, Text: StatsLine(s), Snapshot: &s})
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case ev := <-h.events:
			h.broadcast(EventMessage(ev))
		default:
			return
		}
	}
}

func (h *Hub) forward(msg Message) {
	if !h.limiter.Allow() {
		h.limited.Add(1)
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.channels {
		if !c.Attached() {
			continue
		}
		if err := c.Send(msg); err != nil {
			h.failures.Add(1)
			log.Debugf("diag: %s: %v", c.Name(), err)
		}
	}
}

// Close closes every channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var first error
	for _, c := range h.channels {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.channels = nil
	return first
}

// EventMessage renders a handler event.
func EventMessage(ev dispatch.Event) Message {
	var text string
	switch ev.Kind {
	case dispatch.ModeChanged:
		n := NamesOf(ev.Mode)
		text = fmt.Sprintf("%s press: fir=%s iir=%s", ev.Press, n.FIRName, n.IIRName)
	case dispatch.FaultCleared:
		text = fmt.Sprintf("transfer %s cleared, stream re-armed", ev.Fault)
	case dispatch.FatalFault:
		if ev.Line == dispatch.LineFault {
			text = fmt.Sprintf("fatal transfer %s, halted", ev.Fault)
		} else {
			text = fmt.Sprintf("unexpected interrupt on %s, halted", ev.Line)
		}
	default:
		text = fmt.Sprintf("event %d on %s", ev.Kind, ev.Line)
	}
	return Message{Time: time.Now(), Kind: KindEvent, Text: text}
}

// StatsLine renders a snapshot on one line.
func StatsLine(s Snapshot) string {
	line := fmt.Sprintf("%s fir=%s iir=%s processed=%d dropped=%d missed=%d faults=%d ticks=%d",
		s.Variant, s.Mode.FIRName, s.Mode.IIRName,
		s.Stats.Processed, s.Stats.Stream.Dropped, s.Stats.Missed, s.Stats.Faults, s.Stats.Ticks)
	if s.ButtonErrors > 0 {
		line += fmt.Sprintf(" button_errors=%d", s.ButtonErrors)
	}
	if s.Recorded > 0 {
		line += fmt.Sprintf(" recorded=%d", s.Recorded)
	}
	return line
}
