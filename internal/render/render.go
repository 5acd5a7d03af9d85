// Package render formats plans, progress and run summaries for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/pipetask/internal/events"
	"github.com/aristath/pipetask/internal/persistence"
	"github.com/aristath/pipetask/internal/runner"
	"github.com/aristath/pipetask/internal/scheduler"
)

// Title renders a heading underlined to its width.
func Title(s string) string {
	t := StyleTitle.Render(s)
	return t + "\n" + strings.Repeat("=", lipgloss.Width(t))
}

// KeyValues renders aligned "key  value" lines in the given key order.
func KeyValues(keys []string, values map[string]string) string {
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s  %s\n", StyleKey.Render(fmt.Sprintf("%-*s", width, k)), values[k])
	}
	return b.String()
}

// ProgressBar renders a DAG progress bar of barWidth cells.
func ProgressBar(p events.DAGProgressEvent, barWidth int) string {
	if p.Total <= 0 || barWidth <= 0 {
		return ""
	}
	completedWidth := (p.Completed * barWidth) / p.Total
	failedWidth := (p.Failed * barWidth) / p.Total
	runningWidth := (p.Running * barWidth) / p.Total
	pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

	return fmt.Sprintf("[%s]  %d/%d", bar, p.Completed, p.Total)
}

// Plan renders the tasks of dag in execution order with their dependencies
// and estimated runtime in minutes.
func Plan(dag *scheduler.DAG, order []string, runtime func(*scheduler.Task) float64) string {
	var b strings.Builder
	b.WriteString(Title(fmt.Sprintf("Plan: %d tasks", len(order))))
	b.WriteString("\n")

	total := 0.0
	for i, id := range order {
		t, ok := dag.Get(id)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%3d. %s", i+1, StyleKey.Render(id))
		if runtime != nil {
			m := runtime(t)
			total += m
			line += StyleHelp.Render(fmt.Sprintf("  ~%.1fm", m))
		}
		b.WriteString(line + "\n")
		for _, dep := range t.DependsOn {
			b.WriteString(StyleHelp.Render("       <- "+dep) + "\n")
		}
	}
	if runtime != nil {
		fmt.Fprintf(&b, "\nEstimated serial time: %.1fm\n", total)
	}
	return b.String()
}

// States renders per-type state counts.
func States(types []string, counts map[string]map[persistence.State]int) string {
	states := []persistence.State{persistence.StatePending, persistence.StateRunning, persistence.StateDone, persistence.StateFailed}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s", "type")
	for _, st := range states {
		fmt.Fprintf(&b, " %8s", st)
	}
	b.WriteString("\n")
	for _, typ := range types {
		fmt.Fprintf(&b, "%-12s", typ)
		for _, st := range states {
			cell := fmt.Sprintf(" %8d", counts[typ][st])
			if counts[typ][st] > 0 {
				cell = Status(st.String()).Render(cell)
			}
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Summary renders the results of a run, one line per task, followed by
// totals.
func Summary(s *runner.Summary) string {
	var b strings.Builder
	for _, r := range s.Results {
		line := fmt.Sprintf("%-10s %s", Status(string(r.Outcome)).Render(string(r.Outcome)), r.TaskID)
		if r.Duration > 0 {
			line += StyleHelp.Render(fmt.Sprintf("  %s", r.Duration.Round(time.Millisecond)))
		}
		if r.Attempts > 1 {
			line += StyleHelp.Render(fmt.Sprintf("  (%d attempts)", r.Attempts))
		}
		if r.Error != nil {
			line += "\n           " + StyleStatusFailed.Render(r.Error.Error())
		}
		b.WriteString(line + "\n")
	}

	totals := fmt.Sprintf("completed %d, skipped %d, failed %d, blocked %d",
		s.Count(runner.OutcomeCompleted), s.Count(runner.OutcomeSkipped),
		s.Count(runner.OutcomeFailed), s.Count(runner.OutcomeBlocked))
	if s.RunID != "" {
		totals = "run " + s.RunID + "\n" + totals
	}
	b.WriteString(StyleBox.Render(totals))
	b.WriteString("\n")
	return b.String()
}

// Watch prints task and progress events from ch until it is closed.
func Watch(w io.Writer, ch <-chan events.Event) {
	for ev := range ch {
		if line := Event(ev); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

// Event renders one event as a status line. Unknown events render empty.
func Event(ev events.Event) string {
	switch e := ev.(type) {
	case events.TaskStartedEvent:
		return fmt.Sprintf("%s %s %s", StyleStatusRunning.Render("start"), e.ID, StyleHelp.Render(fmt.Sprintf("procs=%d", e.Procs)))
	case events.TaskCompletedEvent:
		return fmt.Sprintf("%s %s %s", StyleStatusComplete.Render("done "), e.ID, StyleHelp.Render(e.Duration.Round(time.Millisecond).String()))
	case events.TaskSkippedEvent:
		return fmt.Sprintf("%s %s", StyleStatusComplete.Render("skip "), e.ID)
	case events.TaskRetryingEvent:
		return fmt.Sprintf("%s %s attempt %d failed: %v", StyleStatusRunning.Render("retry"), e.ID, e.Attempt, e.Err)
	case events.TaskFailedEvent:
		return fmt.Sprintf("%s %s: %v", StyleStatusFailed.Render("fail "), e.ID, e.Err)
	case events.DAGProgressEvent:
		return ProgressBar(e, 40)
	}
	return ""
}
