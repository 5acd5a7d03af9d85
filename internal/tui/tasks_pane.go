package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/render"
)

const listWidth = 36

// TaskState is what the dashboard knows about one task.
type TaskState struct {
	ID       string
	Status   string // "running", "retrying", "completed", "skipped", "failed"
	Procs    int
	Log      []string
	Started  time.Time
	Duration time.Duration
}

// TasksPaneModel lists the tasks seen so far and shows the event log of the
// selected one.
type TasksPaneModel struct {
	tasks       map[string]*TaskState
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTasksPaneModel creates an empty tasks pane.
func NewTasksPaneModel() TasksPaneModel {
	return TasksPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the tasks pane.
func (m TasksPaneModel) Update(msg tea.Msg) (TasksPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		t := m.ensure(msg.ID, msg.Timestamp)
		t.Status = "running"
		t.Procs = msg.Procs
		t.logf(msg.Timestamp, "started on %d procs", msg.Procs)
		m.refresh(msg.ID)

	case events.TaskRetryingEvent:
		t := m.ensure(msg.ID, msg.Timestamp)
		t.Status = "retrying"
		t.logf(msg.Timestamp, "attempt %d failed: %v (retrying in %s)", msg.Attempt, msg.Err, msg.Wait.Round(time.Millisecond))
		m.refresh(msg.ID)

	case events.TaskCompletedEvent:
		t := m.ensure(msg.ID, msg.Timestamp)
		t.Status = "completed"
		t.Duration = msg.Duration
		t.logf(msg.Timestamp, "completed in %s", msg.Duration.Round(time.Millisecond))
		m.refresh(msg.ID)

	case events.TaskSkippedEvent:
		t := m.ensure(msg.ID, msg.Timestamp)
		t.Status = "skipped"
		t.logf(msg.Timestamp, "already done")
		m.refresh(msg.ID)

	case events.TaskFailedEvent:
		t := m.ensure(msg.ID, msg.Timestamp)
		t.Status = "failed"
		t.Duration = msg.Duration
		t.logf(msg.Timestamp, "failed after %d attempts: %v", msg.Attempts, msg.Err)
		m.refresh(msg.ID)
	}

	return m, cmd
}

func (m *TasksPaneModel) ensure(id string, at time.Time) *TaskState {
	t, ok := m.tasks[id]
	if !ok {
		t = &TaskState{ID: id, Started: at}
		m.tasks[id] = t
		m.order = append(m.order, id)
	}
	return t
}

func (t *TaskState) logf(at time.Time, format string, args ...any) {
	t.Log = append(t.Log, at.Format("15:04:05")+" "+fmt.Sprintf(format, args...))
}

// refresh redraws the viewport when id is the selected task.
func (m *TasksPaneModel) refresh(id string) {
	if m.Selected() == id || len(m.order) == 1 {
		m.updateViewportContent()
	}
}

// View renders the tasks pane.
func (m TasksPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TasksPaneModel) renderList() string {
	var b strings.Builder
	b.WriteString(render.Title("Tasks"))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(render.StyleStatusPending.Render("Waiting..."))
	}

	// Keep the selection visible when the list is taller than the pane.
	rows := max(1, m.height-6)
	first := max(0, m.selectedIdx-rows+1)
	for i := first; i < len(m.order) && i < first+rows; i++ {
		t := m.tasks[m.order[i]]
		id := t.ID
		if len(id) > listWidth-4 {
			id = id[:listWidth-7] + "..."
		}
		line := StatusIcon(t.Status) + " " + id
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line + "\n")
	}

	return lipgloss.NewStyle().
		Width(listWidth).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case "running", "retrying":
		return render.StyleStatusRunning.Render("●")
	case "completed", "skipped":
		return render.StyleStatusComplete.Render("✓")
	case "failed":
		return render.StyleStatusFailed.Render("✗")
	default:
		return render.StyleStatusPending.Render("○")
	}
}

// Selected returns the ID of the selected task, or "".
func (m TasksPaneModel) Selected() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Task returns a copy of the state of one task.
func (m TasksPaneModel) Task(id string) (TaskState, bool) {
	t, ok := m.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	cp := *t
	cp.Log = append([]string(nil), t.Log...)
	return cp, true
}

func (m *TasksPaneModel) updateViewportContent() {
	id := m.Selected()
	t, ok := m.tasks[id]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	header := render.Status(t.Status).Render(t.Status) + " " + t.ID
	m.viewport.SetContent(header + "\n\n" + strings.Join(t.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *TasksPaneModel) resizeViewport() {
	m.viewport.Width = max(10, m.width-listWidth-4)
	m.viewport.Height = max(5, m.height-4)
}

// SetSize updates the pane dimensions.
func (m *TasksPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TasksPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
