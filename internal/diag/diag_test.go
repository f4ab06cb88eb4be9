// SPDX-License-Identifier: MIT
package diag

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamcore/internal/debounce"
	"streamcore/internal/dispatch"
	"streamcore/internal/stream"
)

type memChannel struct {
	mu       sync.Mutex
	attached bool
	msgs     []Message
	closed   bool
}

func (m *memChannel) Name() string   { return "mem" }
func (m *memChannel) Attached() bool { return m.attached }

func (m *memChannel) Send(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memChannel) Close() error {
	m.closed = true
	return nil
}

func (m *memChannel) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs...)
}

func TestNotifyNeverBlocks(t *testing.T) {
	h := NewHub(HubConfig{Queue: 2}, nil)
	for range 5 {
		h.Notify(dispatch.Event{Kind: dispatch.ModeChanged})
	}
	assert.Equal(t, uint64(3), h.Dropped())
}

func TestHubForwardsToAttachedChannels(t *testing.T) {
	on := &memChannel{attached: true}
	off := &memChannel{}
	h := NewHub(HubConfig{}, nil, on, off)

	h.Notify(dispatch.Event{Kind: dispatch.ModeChanged, Mode: dispatch.Mode{FIR: 1}, Press: debounce.Short})
	h.Notify(dispatch.Event{Kind: dispatch.FaultCleared, Fault: dispatch.Overrun, Line: dispatch.LineFault})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Run(ctx), context.Canceled)

	msgs := on.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "short press: fir=second-harmonic iir=fundamental", msgs[0].Text)
	assert.Equal(t, "transfer overrun cleared, stream re-armed", msgs[1].Text)
	assert.Empty(t, off.messages())

	require.NoError(t, h.Close())
	assert.True(t, on.closed)
	assert.True(t, off.closed)
}

func TestHubRateLimit(t *testing.T) {
	ch := &memChannel{attached: true}
	h := NewHub(HubConfig{PerSecond: 0.001, Burst: 2, Interval: time.Millisecond}, func() Snapshot {
		return Snapshot{Variant: "acquire"}
	}, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = h.Run(ctx)

	assert.Len(t, ch.messages(), 2)
	assert.Positive(t, h.Limited())
}

func TestHubPeriodicStats(t *testing.T) {
	ch := &memChannel{attached: true}
	h := NewHub(HubConfig{Interval: 5 * time.Millisecond}, func() Snapshot {
		return Snapshot{
			Variant: "acquire",
			Mode:    NamesOf(dispatch.Mode{IIR: 4}),
			Stats:   dispatch.Stats{Processed: 7},
		}
	}, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = h.Run(ctx)

	msgs := ch.messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, KindStats, msgs[0].Kind)
	require.NotNil(t, msgs[0].Snapshot)
	assert.Equal(t, "dc-block", msgs[0].Snapshot.Mode.IIRName)
	assert.Contains(t, msgs[0].Text, "processed=7")
}

func TestPrintfBypassesLimit(t *testing.T) {
	ch := &memChannel{attached: true}
	h := NewHub(HubConfig{PerSecond: 0.001, Burst: 1}, nil, ch)
	for i := range 5 {
		h.Printf("line %d", i)
	}
	assert.Len(t, ch.messages(), 5)
	assert.Equal(t, KindText, ch.messages()[4].Kind)
}

func TestEventMessages(t *testing.T) {
	tests := []struct {
		ev   dispatch.Event
		want string
	}{
		{dispatch.Event{Kind: dispatch.ModeChanged, Mode: dispatch.Mode{IIR: 1}, Press: debounce.Long},
			"long press: fir=fundamental iir=second-harmonic"},
		{dispatch.Event{Kind: dispatch.FatalFault, Fault: dispatch.Underrun, Line: dispatch.LineFault},
			"fatal transfer underrun, halted"},
		{dispatch.Event{Kind: dispatch.FatalFault, Line: dispatch.Line(9)},
			"unexpected interrupt on line(9), halted"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EventMessage(tt.ev).Text)
	}
}

func TestStatsLine(t *testing.T) {
	s := Snapshot{
		Variant: "acquire",
		Mode:    NamesOf(dispatch.Mode{}),
		Stats:   dispatch.Stats{Processed: 7, Faults: 1},
	}
	assert.Equal(t,
		"acquire fir=fundamental iir=fundamental processed=7 dropped=0 missed=0 faults=1 ticks=0",
		StatsLine(s))

	s.ButtonErrors = 3
	s.Recorded = 512
	assert.True(t, strings.HasSuffix(StatsLine(s), " button_errors=3 recorded=512"), StatsLine(s))
}

func TestUDPPublisher(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	sender, err := NewUDPSender(pc.LocalAddr().String())
	require.NoError(t, err)

	pub, err := NewUDPPublisher(5*time.Millisecond, sender, func() Snapshot {
		return Snapshot{
			Mode:   NamesOf(dispatch.Mode{FIR: 2, IIR: 3}),
			Stats:  dispatch.Stats{Processed: 100, Missed: 1, Faults: 2, Stream: stream.Stats{Dropped: 4}},
			Halted: true,
		}
	})
	require.NoError(t, err)
	pub.Start()
	pub.Start()
	defer pub.Close()

	buf := make([]byte, 128)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	pkt, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pkt.Sequence)
	assert.Equal(t, uint64(100), pkt.Processed)
	assert.Equal(t, uint64(4), pkt.Dropped)
	assert.Equal(t, uint64(1), pkt.Missed)
	assert.Equal(t, uint32(2), pkt.Faults)
	assert.Equal(t, uint8(2), pkt.FIR)
	assert.Equal(t, uint8(3), pkt.IIR)
	assert.Equal(t, uint16(FlagHalted), pkt.Flags)
	assert.Positive(t, pkt.Timestamp)

	require.NoError(t, pub.Stop())
	require.NoError(t, pub.Stop())
}

func TestUDPPublisherValidation(t *testing.T) {
	_, err := NewUDPPublisher(time.Second, nil, func() Snapshot { return Snapshot{} })
	assert.Error(t, err)

	_, err = DecodePacket(make([]byte, 3))
	assert.Error(t, err)
}

func TestUDPSenderClosed(t *testing.T) {
	s, err := NewUDPSender("127.0.0.1:9")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Error(t, s.Send([]byte{1}))
}

func TestWebSocketChannel(t *testing.T) {
	wsc, err := NewWebSocketChannel("127.0.0.1:0")
	require.NoError(t, err)
	defer wsc.Close()
	assert.False(t, wsc.Attached())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wsc.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, wsc.Attached, 2*time.Second, 5*time.Millisecond)

	h := NewHub(HubConfig{}, nil, wsc)
	h.Printf("banner %s", "v1")

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "banner v1", got.Text)
	assert.Equal(t, KindText, got.Kind)

	require.NoError(t, wsc.Close())
	require.NoError(t, wsc.Close())
}
