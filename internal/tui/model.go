// Package tui is the interactive run dashboard: a task list with per-task
// event logs next to the DAG progress.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/pipetask/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneDAG
)

const paneCount = 2

// runFinishedMsg is sent once the event subscription is closed.
type runFinishedMsg struct{}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	tasksPane   TasksPaneModel
	dagPane     DAGPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
	finished    bool
}

// New creates a dashboard fed by every event published on bus.
func New(bus *events.Bus) Model {
	return NewWithSubscription(bus.SubscribeAll(0))
}

// NewWithSubscription creates a dashboard fed by sub.
func NewWithSubscription(sub <-chan events.Event) Model {
	m := Model{
		tasksPane:   NewTasksPaneModel(),
		dagPane:     NewDAGPaneModel(),
		focusedPane: PaneTasks,
		eventSub:    sub,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), m.dagPane.Init())
}

// waitForEvent returns a command that waits for the next event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return runFinishedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneDAG
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.tasksPane, cmd = m.tasksPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.TaskStartedEvent, events.TaskRetryingEvent, events.TaskCompletedEvent,
		events.TaskSkippedEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.tasksPane, cmd = m.tasksPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.DAGProgressEvent:
		var cmd tea.Cmd
		m.dagPane, cmd = m.dagPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case runFinishedMsg:
		m.finished = true
		m.dagPane, _ = m.dagPane.Update(msg)

	default:
		var cmd tea.Cmd
		m.dagPane, cmd = m.dagPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	content := lipgloss.JoinVertical(lipgloss.Left, m.tasksPane.View(), m.dagPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, content, HelpView(m.finished))
}

// Finished reports whether every event of the run has been received.
func (m Model) Finished() bool { return m.finished }

// Interrupted reports whether the user quit before the run finished.
func (m Model) Interrupted() bool { return m.quitting && !m.finished }

// Tasks returns the tasks pane.
func (m Model) Tasks() TasksPaneModel { return m.tasksPane }

// DAG returns the progress pane.
func (m Model) DAG() DAGPaneModel { return m.dagPane }

// computeLayout gives the task pane 70% of the height above the help bar.
func (m *Model) computeLayout() {
	available := m.height - 1
	top := (available * 70) / 100
	m.tasksPane.SetSize(m.width, top)
	m.dagPane.SetSize(m.width, available-top)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.tasksPane.SetFocused(m.focusedPane == PaneTasks)
	m.dagPane.SetFocused(m.focusedPane == PaneDAG)
}
