package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxEventLines bounds the event log shown under the status table
const maxEventLines = 8

// EventLine is one entry of the event log
type EventLine struct {
	Time    time.Time
	Mower   string
	Type    string
	Summary string
}

// Render returns the styled log line
func (l EventLine) Render() string {
	return fmt.Sprintf("%s  %s  %s  %s",
		EventTimeStyle.Render(l.Time.Format("15:04:05")),
		EventTypeStyle.Render(fmt.Sprintf("%-15s", l.Type)),
		l.Mower,
		l.Summary,
	)
}

// ConnectedMsg tells the dashboard the event stream is up
type ConnectedMsg struct{}

// MowerUpdateMsg replaces one mower row and appends an event line
type MowerUpdateMsg struct {
	Row  MowerRow
	Line EventLine
}

// StreamClosedMsg ends the dashboard; Err is nil after a user quit
type StreamClosedMsg struct {
	Err error
}

// WatchModel is the Bubble Tea model of the live mower dashboard
type WatchModel struct {
	header    string
	spinner   spinner.Model
	connected bool
	rows      map[string]MowerRow
	order     []string
	log       []EventLine
	err       error
	quitting  bool
}

// NewWatchModel creates a dashboard showing rows until updates arrive
func NewWatchModel(header string, rows []MowerRow) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	m := WatchModel{
		header:  header,
		spinner: s,
		rows:    make(map[string]MowerRow, len(rows)),
	}
	for _, r := range rows {
		m.setRow(r)
	}
	return m
}

func (m *WatchModel) setRow(r MowerRow) {
	if _, ok := m.rows[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	m.rows[r.ID] = r
}

// Err returns the error that closed the stream, if any
func (m WatchModel) Err() error {
	return m.err
}

// Rows returns the current rows in first-seen order
func (m WatchModel) Rows() []MowerRow {
	out := make([]MowerRow, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id])
	}
	return out
}

// Events returns the retained event log, oldest first
func (m WatchModel) Events() []EventLine {
	return m.log
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case ConnectedMsg:
		m.connected = true
		return m, nil

	case MowerUpdateMsg:
		m.setRow(msg.Row)
		m.log = append(m.log, msg.Line)
		if len(m.log) > maxEventLines {
			m.log = m.log[len(m.log)-maxEventLines:]
		}
		return m, nil

	case StreamClosedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	if m.header != "" {
		b.WriteString(m.header)
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(ErrorMessageStyle.Render("  " + FailureMarker + " " + m.err.Error()))
	case m.connected:
		b.WriteString(SuccessTitleStyle.Render("  ● Connected"))
		b.WriteString(HintStyle.Render("  (press q to quit)"))
	default:
		b.WriteString("  " + m.spinner.View() + " Connecting to event stream...")
	}
	b.WriteString("\n\n")

	b.WriteString(RenderMowerStatus(m.Rows()))
	b.WriteString("\n")

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(line.Render())
			b.WriteString("\n")
		}
	}

	if m.quitting {
		b.WriteString("\n")
	}
	return b.String()
}
