// SPDX-License-Identifier: MIT
package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamcore/internal/diag"
	"streamcore/internal/dispatch"
)

type recordingPresser struct{ presses []int }

func (r *recordingPresser) Press(ticks int) { r.presses = append(r.presses, ticks) }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(b Presser) MonitorModel {
	m := NewMonitorModel(Config{
		Snapshot: func() diag.Snapshot {
			return diag.Snapshot{
				Variant: "acquire",
				Mode:    diag.NamesOf(dispatch.Mode{FIR: 1, IIR: 4}),
				Stats:   dispatch.Stats{Processed: 42, Faults: 1},

				ButtonErrors: 2,
				Recorded:     672,
			}
		},
		Button:     b,
		ShortPress: 50,
		LongPress:  1001,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return next.(MonitorModel)
}

func TestMonitorBeforeSize(t *testing.T) {
	m := NewMonitorModel(Config{})
	assert.Equal(t, "Initializing...", m.View())
	assert.Equal(t, 100*time.Millisecond, m.cfg.Refresh)
	assert.NotNil(t, m.Init())
}

func TestMonitorRefresh(t *testing.T) {
	m := newModel(nil)
	next, cmd := m.Update(refreshMsg(time.Now()))
	require.NotNil(t, cmd)
	m = next.(MonitorModel)

	assert.Equal(t, uint64(42), m.snap.Stats.Processed)
	out := m.render()
	assert.Contains(t, out, "▶ second-harmonic")
	assert.Contains(t, out, "▶ dc-block")
	assert.Contains(t, out, "Buffers processed: 42")
	assert.Contains(t, out, "Button read errors: 2")
	assert.Contains(t, out, "Recorded samples:  672")
	assert.Contains(t, m.View(), "s: Short press")
}

func TestMonitorPressKeys(t *testing.T) {
	b := &recordingPresser{}
	m := newModel(b)

	next, _ := m.Update(runes("s"))
	m = next.(MonitorModel)
	next, _ = m.Update(runes("l"))
	m = next.(MonitorModel)

	assert.Equal(t, []int{50, 1001}, b.presses)
	assert.Equal(t, "long press (1001 ticks)", m.status)
}

func TestMonitorWithoutButton(t *testing.T) {
	m := newModel(nil)
	next, _ := m.Update(runes("s"))
	m = next.(MonitorModel)
	assert.Empty(t, m.status)
	assert.Contains(t, m.View(), "q: Quit")
	assert.NotContains(t, m.View(), "Short press")
}

func TestMonitorQuitsWhenPipelineStops(t *testing.T) {
	done := make(chan struct{})
	m := NewMonitorModel(Config{
		Snapshot: func() diag.Snapshot { return diag.Snapshot{Variant: "generate", Halted: true} },
		Done:     done,
	})

	wait := m.waitDone()
	require.NotNil(t, wait)
	close(done)
	msg := wait()
	assert.Equal(t, stoppedMsg{}, msg)

	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, next.(MonitorModel).snap.Halted)
}

func TestMonitorWithoutDone(t *testing.T) {
	m := NewMonitorModel(Config{})
	assert.Nil(t, m.waitDone())
}

func TestMonitorQuit(t *testing.T) {
	m := newModel(nil)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
