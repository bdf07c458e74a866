// Package reporter renders workflow analysis results for terminals, files
// and the HTTP API.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/taskflow/internal/cpm"
	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/schedule"
	"github.com/joshharrison/taskflow/internal/state"
	"github.com/joshharrison/taskflow/internal/ui"
	"github.com/joshharrison/taskflow/internal/validate"
)

// Report is the outcome of one analysis pass over a workflow.
type Report struct {
	ID          string          `json:"id"`
	Source      string          `json:"source,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Validation  validate.Result `json:"validation"`

	// Direct holds per-task figures computed from direct neighbours only.
	Direct       []schedule.TaskSchedule `json:"direct,omitempty"`
	CriticalPath []string                `json:"criticalPath"`

	// Full is the transitive analysis; nil when the workflow is invalid.
	Full *cpm.CPMResult `json:"full,omitempty"`

	graph *graph.TaskGraph
}

// Build validates wf and, when it is usable, schedules it.
func Build(source string, wf graph.Workflow) *Report {
	result := validate.Merge(
		validate.ValidateWorkflowIntegrity(wf.Tasks, wf.Edges),
		validate.ValidateEdges(wf.Edges),
	)
	r := &Report{
		ID:          uuid.NewString(),
		Source:      source,
		GeneratedAt: time.Now(),
		Validation:  result,
		graph:       graph.Build(wf),
	}
	if !r.Validation.Valid {
		return r
	}

	r.Direct = schedule.DirectAll(wf.Tasks, wf.Edges, false)
	r.CriticalPath = schedule.FindCriticalPath(wf.Tasks, wf.Edges)

	// Validation already rejected cycles, so Analyze cannot fail here.
	if full, err := cpm.Analyze(wf); err == nil {
		r.Full = full
	}
	return r
}

// Failed reports whether the report should fail a CLI run.
func (r *Report) Failed(strict bool) bool {
	return !r.Validation.Valid || (strict && len(r.Validation.Warnings) > 0)
}

// JSON returns the machine-readable report.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// PrintValidation writes the validation outcome.
func (r *Report) PrintValidation(w io.Writer) {
	v := r.Validation
	name := r.Source
	if name == "" {
		name = "workflow"
	}

	icon := ui.ResultIcon(v.Valid, len(v.Warnings))
	status := ui.BoldGreen("valid")
	if !v.Valid {
		status = ui.BoldRed("invalid")
	}
	fmt.Fprintf(w, "%s %s  %s  %s\n", icon, ui.Bold(name), status,
		ui.Dim(fmt.Sprintf("(%d tasks, %d edges)", r.graph.TaskCount(), len(r.graph.Edges))))

	if !v.Valid {
		for _, e := range strings.Split(v.Error, "; ") {
			fmt.Fprintf(w, "    %s %s\n", ui.Red("error:"), e)
		}
		if cycle := r.graph.DetectCycle(); cycle != nil {
			fmt.Fprintf(w, "    %s %s\n", ui.Dim("cycle:"), strings.Join(cycle, " → "))
		}
	}
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "    %s %s\n", ui.Yellow("warning:"), warn)
	}
}

// PrintSchedule writes a per-task schedule table followed by the critical path.
func (r *Report) PrintSchedule(w io.Writer) {
	if !r.Validation.Valid {
		fmt.Fprintf(w, "%s\n", ui.Red("Schedule not computed: workflow is invalid."))
		return
	}

	fmt.Fprintf(w, "🗓  %s\n", ui.BoldCyan("Task Schedule"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════"))
	if r.Full != nil {
		fmt.Fprintf(w, "Project:   %s → %s (%d days)\n",
			r.Full.ProjectStart.Format(dateLayout), r.Full.ProjectFinish.Format(dateLayout), r.Full.TotalDuration)
	}
	fmt.Fprintln(w)

	for _, s := range r.Direct {
		t := r.graph.Tasks[s.TaskID]
		title := truncate(t.Title, 32)
		full := ""
		if r.Full != nil {
			if fs, ok := r.Full.Tasks[s.TaskID]; ok {
				full = ui.Dim(fmt.Sprintf("  full: %dd", fs.Slack))
			}
		}
		fmt.Fprintf(w, "  %s %-32s  ES %s  EF %s  LF %s  %s%s\n",
			ui.TaskPrefix(s.TaskID), title,
			s.EarliestStart.Format(dateLayout), s.EarliestFinish.Format(dateLayout), s.LatestFinish.Format(dateLayout),
			ui.SlackLabel(s.Slack), full)
	}
	fmt.Fprintln(w)
	r.PrintCriticalPath(w)
}

// PrintCriticalPath writes the critical path line.
func (r *Report) PrintCriticalPath(w io.Writer) {
	if len(r.CriticalPath) == 0 {
		fmt.Fprintf(w, "⚡ Critical path: %s\n", ui.Dim("none"))
	} else {
		fmt.Fprintf(w, "⚡ Critical path: %s (%d tasks)\n",
			ui.BoldYellow(strings.Join(r.CriticalPath, " → ")), len(r.CriticalPath))
	}
	if r.Full != nil && len(r.Full.CriticalPath) > 0 && !sameIDs(r.Full.CriticalPath, r.CriticalPath) {
		fmt.Fprintf(w, "   Full-graph path: %s\n", ui.Yellow(strings.Join(r.Full.CriticalPath, " → ")))
	}
}

const dateLayout = "2006-01-02"

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

// HistoryEntry summarises the report for the run history.
func (r *Report) HistoryEntry() *state.Entry {
	e := &state.Entry{
		ReportID:     r.ID,
		Source:       r.Source,
		RecordedAt:   r.GeneratedAt,
		Status:       state.StatusValid,
		Warnings:     len(r.Validation.Warnings),
		Tasks:        r.graph.TaskCount(),
		CriticalPath: r.CriticalPath,
	}
	switch {
	case !r.Validation.Valid:
		e.Status = state.StatusInvalid
	case e.Warnings > 0:
		e.Status = state.StatusWarnings
	}
	if r.Full != nil {
		finish := r.Full.ProjectFinish
		e.ProjectFinish = &finish
		e.TotalDuration = r.Full.TotalDuration
	}
	return e
}
