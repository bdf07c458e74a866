package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joshharrison/taskflow/internal/graph"
)

// TaskSchedule holds the derived dates for a single task. None of these
// fields are stored on graph.Task.
type TaskSchedule struct {
	TaskID         string    `json:"taskId"`
	EarliestStart  time.Time `json:"earliestStart"`
	EarliestFinish time.Time `json:"earliestFinish"`
	LatestFinish   time.Time `json:"latestFinish"`
	Slack          int       `json:"slack"` // days
	IsCritical     bool      `json:"isCritical"`
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// DaysBetween returns floor((to - from) / 24h).
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// startConstraint is the earliest date task may start given one predecessor.
func startConstraint(task, dep graph.Task, depType graph.DependencyType, lag int) time.Time {
	var c time.Time
	switch depType {
	case graph.FinishToStart:
		c = dep.EndDate
	case graph.StartToStart:
		c = dep.StartDate
	case graph.FinishToFinish:
		c = addDays(dep.EndDate, -task.Duration)
	case graph.StartToFinish:
		c = addDays(dep.StartDate, -task.Duration)
	default:
		panic(fmt.Sprintf("schedule: unhandled dependency type %s", depType))
	}
	return addDays(c, lag)
}

// finishConstraint is the latest date task may finish given one successor.
func finishConstraint(task, dependent graph.Task, depType graph.DependencyType, lag int) time.Time {
	var c time.Time
	switch depType {
	case graph.FinishToStart:
		c = dependent.StartDate
	case graph.StartToStart:
		c = addDays(dependent.StartDate, task.Duration)
	case graph.FinishToFinish:
		c = dependent.EndDate
	case graph.StartToFinish:
		c = addDays(dependent.EndDate, task.Duration)
	default:
		panic(fmt.Sprintf("schedule: unhandled dependency type %s", depType))
	}
	return addDays(c, -lag)
}

// EarliestStart returns the latest of the task's own start date and the
// constraint implied by each dependency. With no dependencies the task's
// start date is returned unchanged.
func EarliestStart(task graph.Task, dependencies []graph.Task, depType graph.DependencyType, lag int) time.Time {
	es := task.StartDate
	for _, dep := range dependencies {
		if c := startConstraint(task, dep, depType, lag); c.After(es) {
			es = c
		}
	}
	return es
}

// LatestFinish is the backward counterpart of EarliestStart: the earliest of
// the task's own end date and each dependent's constraint.
func LatestFinish(task graph.Task, dependents []graph.Task, depType graph.DependencyType, lag int) time.Time {
	lf := task.EndDate
	for _, dep := range dependents {
		if c := finishConstraint(task, dep, depType, lag); c.Before(lf) {
			lf = c
		}
	}
	return lf
}

// Slack is the number of whole days between the task's earliest finish and
// its latest finish, using finish-to-start with no lag. Zero or less means
// the task is critical or already late.
func Slack(task graph.Task, dependencies, dependents []graph.Task) int {
	return Direct(task, dependencies, dependents).Slack
}

// Direct computes the schedule of one task from its direct neighbours only.
func Direct(task graph.Task, dependencies, dependents []graph.Task) TaskSchedule {
	es := EarliestStart(task, dependencies, graph.FinishToStart, 0)
	ef := addDays(es, task.Duration)
	lf := LatestFinish(task, dependents, graph.FinishToStart, 0)
	slack := DaysBetween(ef, lf)
	return TaskSchedule{
		TaskID:         task.ID,
		EarliestStart:  es,
		EarliestFinish: ef,
		LatestFinish:   lf,
		Slack:          slack,
		IsCritical:     slack <= 0,
	}
}

// Constraint pairs a neighbour task with the edge that links it.
type Constraint struct {
	Task graph.Task
	Type graph.DependencyType
	Lag  int
}

// WithEdges computes the schedule of one task from its direct neighbours,
// honouring each edge's own dependency type and lag.
func WithEdges(task graph.Task, inbound, outbound []Constraint) TaskSchedule {
	es := task.StartDate
	for _, c := range inbound {
		if d := startConstraint(task, c.Task, c.Type, c.Lag); d.After(es) {
			es = d
		}
	}
	lf := task.EndDate
	for _, c := range outbound {
		if d := finishConstraint(task, c.Task, c.Type, c.Lag); d.Before(lf) {
			lf = d
		}
	}
	ef := addDays(es, task.Duration)
	slack := DaysBetween(ef, lf)
	return TaskSchedule{
		TaskID:         task.ID,
		EarliestStart:  es,
		EarliestFinish: ef,
		LatestFinish:   lf,
		Slack:          slack,
		IsCritical:     slack <= 0,
	}
}

// DirectAll computes Direct for every task, resolving neighbours by ID.
// Edges that reference unknown tasks are ignored. When honourEdges is set
// each edge's type and lag are used instead of finish-to-start with no lag.
func DirectAll(tasks []graph.Task, edges []graph.Edge, honourEdges bool) []TaskSchedule {
	byID := make(map[string]graph.Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = t
		}
	}

	inbound := make(map[string][]Constraint)
	outbound := make(map[string][]Constraint)
	for _, e := range edges {
		src, okS := byID[e.Source]
		dst, okT := byID[e.Target]
		if !okS || !okT {
			continue
		}
		inbound[e.Target] = append(inbound[e.Target], Constraint{Task: src, Type: e.Type, Lag: e.Lag})
		outbound[e.Source] = append(outbound[e.Source], Constraint{Task: dst, Type: e.Type, Lag: e.Lag})
	}

	out := make([]TaskSchedule, 0, len(tasks))
	for _, t := range tasks {
		if honourEdges {
			out = append(out, WithEdges(t, inbound[t.ID], outbound[t.ID]))
			continue
		}
		out = append(out, Direct(t, neighbours(inbound[t.ID]), neighbours(outbound[t.ID])))
	}
	return out
}

func neighbours(cs []Constraint) []graph.Task {
	if len(cs) == 0 {
		return nil
	}
	ts := make([]graph.Task, len(cs))
	for i, c := range cs {
		ts[i] = c.Task
	}
	return ts
}

// FindCriticalPath returns the IDs of tasks whose slack, computed from their
// direct dependencies and dependents, is zero or negative, ordered by start
// date. Ties keep input order.
//
// Slack here is not propagated through the whole graph; cpm.Analyze does
// the full forward and backward pass.
func FindCriticalPath(tasks []graph.Task, edges []graph.Edge) []string {
	schedules := DirectAll(tasks, edges, false)

	var critical []graph.Task
	for i, s := range schedules {
		if s.Slack <= 0 {
			critical = append(critical, tasks[i])
		}
	}

	sort.SliceStable(critical, func(a, b int) bool {
		return critical[a].StartDate.Before(critical[b].StartDate)
	})

	ids := make([]string, len(critical))
	for i, t := range critical {
		ids[i] = t.ID
	}
	return ids
}
