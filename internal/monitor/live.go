package monitor

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/jsenna/acquire/internal/measure"
)

const (
	plotWidth  = 60
	plotHeight = 10
	tailRows   = 5
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	stateStyles = map[measure.RunState]lipgloss.Style{
		measure.StateRunning:           lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		measure.StateDone:              lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		measure.StateInterruptedSafety: lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		measure.StateInterruptedForced: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		measure.StateFailed:            lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type snapshotMsg struct{ ds *measure.Dataset }

// Live is a bubbletea monitor showing run progress, the latest rows
// and a rolling plot of the first measured variable. Snapshots arrive
// over program.Send, so a slow terminal never stalls the acquisition.
type Live struct {
	prog *tea.Program
	done chan struct{}
}

// NewLive starts the TUI event loop in its own goroutine. total is the
// expected point count; 0 means unbounded.
func NewLive(total int) *Live {
	l := &Live{
		prog: tea.NewProgram(liveModel{total: total}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		l.prog.Run()
	}()
	return l
}

// Update forwards the snapshot to the TUI.
func (l *Live) Update(snap *measure.Dataset) error {
	l.prog.Send(snapshotMsg{ds: snap})
	return nil
}

// Close shuts the TUI down and waits for the terminal to be restored.
func (l *Live) Close() {
	l.prog.Quit()
	<-l.done
}

type liveModel struct {
	snap  *measure.Dataset
	total int
}

func (m liveModel) Init() tea.Cmd { return nil }

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case snapshotMsg:
		m.snap = msg.ds
	}
	return m, nil
}

func (m liveModel) View() string {
	if m.snap == nil {
		return headerStyle.Render("waiting for data...") + "\n"
	}
	ds := m.snap

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(ds.Name)) + "  " + valueStyle.Render(ds.TUID) + "\n")
	st, ok := stateStyles[ds.State]
	if !ok {
		st = valueStyle
	}
	s.WriteString(st.Render(ds.State.String()) + "\n\n")

	if m.total > 0 {
		s.WriteString(labelStyle.Render("Points") + valueStyle.Render(fmt.Sprintf("%d/%d", ds.Rows(), m.total)) + "\n")
	} else {
		s.WriteString(labelStyle.Render("Points") + valueStyle.Render(fmt.Sprintf("%d", ds.Rows())) + "\n")
	}

	if len(ds.Vars) > 0 && ds.Rows() > 1 {
		vals := ds.Vars[0].Values
		if len(vals) > plotWidth {
			vals = vals[len(vals)-plotWidth:]
		}
		chart := asciigraph.Plot(vals,
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(ds.Vars[0].Label))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString("\n" + m.tail(ds))
	s.WriteString(helpStyle.Render("q: quit view (run keeps going)"))
	return s.String()
}

// tail renders the last few rows as an aligned table.
func (m liveModel) tail(ds *measure.Dataset) string {
	rows := ds.Rows()
	if rows == 0 {
		return ""
	}
	start := rows - tailRows
	if start < 0 {
		start = 0
	}

	var s strings.Builder
	for _, col := range ds.Coords {
		s.WriteString(labelStyle.Render(col.Label))
	}
	for _, col := range ds.Vars {
		s.WriteString(labelStyle.Render(col.Label))
	}
	s.WriteString("\n")
	for i := start; i < rows; i++ {
		for _, col := range ds.Coords {
			s.WriteString(valueStyle.Render(fmt.Sprintf("%-10.4g", col.Values[i])))
		}
		for _, col := range ds.Vars {
			s.WriteString(valueStyle.Render(fmt.Sprintf("%-10.4g", col.Values[i])))
		}
		s.WriteString("\n")
	}
	return s.String()
}
