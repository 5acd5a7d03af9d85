package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/render"
)

// DAGPaneModel represents the DAG progress display pane.
type DAGPaneModel struct {
	progress events.DAGProgressEvent
	spinner  spinner.Model
	finished bool
	width    int
	height   int
	focused  bool
}

// NewDAGPaneModel creates a new DAG pane model.
func NewDAGPaneModel() DAGPaneModel {
	return DAGPaneModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(render.StyleStatusRunning)),
	}
}

// Init starts the activity spinner.
func (m DAGPaneModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the DAG pane.
func (m DAGPaneModel) Update(msg tea.Msg) (DAGPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.DAGProgressEvent:
		m.progress = msg

	case runFinishedMsg:
		m.finished = true

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Progress returns the last progress snapshot received.
func (m DAGPaneModel) Progress() events.DAGProgressEvent { return m.progress }

// View renders the DAG pane.
func (m DAGPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := "DAG Progress"
	if !m.finished {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(render.Title(title))
	b.WriteString("\n\n")

	p := m.progress
	b.WriteString(fmt.Sprintf("Total:     %d\n", p.Total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", render.StyleStatusComplete.Render(fmt.Sprint(p.Completed))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", render.StyleStatusRunning.Render(fmt.Sprint(p.Running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", render.StyleStatusFailed.Render(fmt.Sprint(p.Failed))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", render.StyleStatusPending.Render(fmt.Sprint(p.Pending))))
	b.WriteString("\n")
	b.WriteString(render.ProgressBar(p, min(m.width-16, 40)))

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *DAGPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *DAGPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
