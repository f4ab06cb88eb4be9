// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streamcore/internal/diag"
	"streamcore/internal/filter"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0463C")).
			Bold(true)
)

var (
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	shortKey = key.NewBinding(key.WithKeys("s"))
	longKey  = key.NewBinding(key.WithKeys("l"))
)

// Presser is the scripted button the monitor drives.
type Presser interface {
	Press(ticks int)
}

// Config wires a MonitorModel.
type Config struct {
	Snapshot   func() diag.Snapshot
	Button     Presser // nil disables the press keys
	ShortPress int     // ticks held for a short press
	LongPress  int     // ticks held for a long press
	Refresh    time.Duration
	// Done is closed when the pipeline stops; the monitor then quits.
	Done <-chan struct{}
}

// MonitorModel is the live view of a running pipeline.
type MonitorModel struct {
	cfg      Config
	snap     diag.Snapshot
	viewport viewport.Model
	ready    bool
	status   string
}

type refreshMsg time.Time

type stoppedMsg struct{}

// NewMonitorModel returns a monitor. A zero refresh defaults to 100ms.
func NewMonitorModel(cfg Config) MonitorModel {
	if cfg.Refresh <= 0 {
		cfg.Refresh = 100 * time.Millisecond
	}
	return MonitorModel{cfg: cfg}
}

func (m MonitorModel) refresh() tea.Cmd {
	return tea.Tick(m.cfg.Refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m MonitorModel) waitDone() tea.Cmd {
	if m.cfg.Done == nil {
		return nil
	}
	done := m.cfg.Done
	return func() tea.Msg {
		<-done
		return stoppedMsg{}
	}
}

// Init starts the refresh loop and the wait for the pipeline to stop.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitDone())
}

// Update handles refreshes, window changes and keys.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case refreshMsg:
		if m.cfg.Snapshot != nil {
			m.snap = m.cfg.Snapshot()
		}
		cmds = append(cmds, m.refresh())

	case stoppedMsg:
		if m.cfg.Snapshot != nil {
			m.snap = m.cfg.Snapshot()
		}
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, shortKey) && m.cfg.Button != nil:
			m.cfg.Button.Press(m.cfg.ShortPress)
			m.status = fmt.Sprintf("short press (%d ticks)", m.cfg.ShortPress)
		case key.Matches(msg, longKey) && m.cfg.Button != nil:
			m.cfg.Button.Press(m.cfg.LongPress)
			m.status = fmt.Sprintf("long press (%d ticks)", m.cfg.LongPress)
		}
	}

	if m.ready {
		m.viewport.SetContent(m.render())
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m MonitorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("streamcore · " + m.snap.Variant)
	help := "q: Quit"
	if m.cfg.Button != nil {
		help = "s: Short press • l: Long press • q: Quit"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), infoStyle.Render(help))
}

func (m MonitorModel) render() string {
	var sb strings.Builder

	if m.snap.Halted {
		sb.WriteString(alertStyle.Render("HALTED"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("FIR bank:\n")
	for i, b := range filter.FIRBanks {
		sb.WriteString(bankLine(b.Name, i == int(m.snap.Mode.FIR)))
	}
	sb.WriteString("\nIIR bank:\n")
	for i, b := range filter.IIRBanks {
		sb.WriteString(bankLine(b.Name, i == int(m.snap.Mode.IIR)))
	}

	st := m.snap.Stats
	fmt.Fprintf(&sb, "\nBuffers processed: %d\n", st.Processed)
	fmt.Fprintf(&sb, "Dropped frames:    %d (stale %d, missed %d)\n", st.Stream.Dropped, st.Stream.Stale, st.Missed)
	fmt.Fprintf(&sb, "Transfer faults:   %d\n", st.Faults)
	fmt.Fprintf(&sb, "Ticks:             %d (short %d, long %d)\n", st.Ticks, st.Shorts, st.Longs)
	if m.snap.ButtonErrors > 0 {
		sb.WriteString(alertStyle.Render(fmt.Sprintf("Button read errors: %d", m.snap.ButtonErrors)) + "\n")
	}
	if m.snap.Recorded > 0 {
		fmt.Fprintf(&sb, "Recorded samples:  %d\n", m.snap.Recorded)
	}

	if m.status != "" {
		sb.WriteString("\n" + m.status + "\n")
	}
	return sb.String()
}

func bankLine(name string, active bool) string {
	if active {
		return highlightStyle.Render(fmt.Sprintf("  ▶ %s", name)) + "\n"
	}
	return fmt.Sprintf("    %s\n", name)
}

// Run shows the monitor until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(NewMonitorModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
