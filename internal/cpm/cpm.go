package cpm

import (
	"fmt"
	"sort"
	"time"

	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/schedule"
)

// Analyze performs critical path method analysis over the whole workflow.
// Unlike schedule.FindCriticalPath, earliest and latest dates are propagated
// transitively. Each edge's dependency type and lag apply, and no task starts
// before its own start date. Edges to unknown tasks are ignored; a cycle is
// an error.
func Analyze(wf graph.Workflow) (*CPMResult, error) {
	// Keeping every task drops only the dangling edges.
	g := graph.Build(wf).Filter(func(*graph.Task) bool { return true })

	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	result := &CPMResult{
		Tasks:     make(map[string]*TaskSchedule),
		TopoOrder: order,
	}
	if len(order) == 0 {
		return result, nil
	}

	// Initialize schedules
	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{TaskID: id}
	}

	// Forward pass: ES = max(own start, constraint from every predecessor)
	for _, id := range order {
		t := g.Tasks[id]
		ts := result.Tasks[id]
		es := t.StartDate
		for _, pred := range g.RevAdj[id] {
			e, _ := g.Edge(pred, id)
			if c := forwardConstraint(result.Tasks[pred], t.Duration, e); c.After(es) {
				es = c
			}
		}
		ts.ES = es
		ts.EF = es.AddDate(0, 0, t.Duration)
	}

	// Project window
	result.ProjectStart = result.Tasks[order[0]].ES
	result.ProjectFinish = result.Tasks[order[0]].EF
	for _, ts := range result.Tasks {
		if ts.ES.Before(result.ProjectStart) {
			result.ProjectStart = ts.ES
		}
		if ts.EF.After(result.ProjectFinish) {
			result.ProjectFinish = ts.EF
		}
	}
	result.TotalDuration = schedule.DaysBetween(result.ProjectStart, result.ProjectFinish)

	// Backward pass in reverse topological order. Leaves finish with the project.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		t := g.Tasks[id]
		ts := result.Tasks[id]

		lf := result.ProjectFinish
		for _, succ := range g.Adj[id] {
			e, _ := g.Edge(id, succ)
			if c := backwardConstraint(result.Tasks[succ], t.Duration, e); c.Before(lf) {
				lf = c
			}
		}
		ts.LF = lf
		ts.LS = lf.AddDate(0, 0, -t.Duration)

		ts.Slack = schedule.DaysBetween(ts.ES, ts.LS)
		ts.IsCritical = ts.Slack <= 0
	}

	// Build critical path (critical tasks in topological order)
	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	result.Waves = computeWaves(result)

	return result, nil
}

// forwardConstraint is the earliest start a successor of pred may take.
func forwardConstraint(pred *TaskSchedule, duration int, e graph.Edge) time.Time {
	var c time.Time
	switch e.Type {
	case graph.FinishToStart:
		c = pred.EF
	case graph.StartToStart:
		c = pred.ES
	case graph.FinishToFinish:
		c = pred.EF.AddDate(0, 0, -duration)
	case graph.StartToFinish:
		c = pred.ES.AddDate(0, 0, -duration)
	default:
		panic(fmt.Sprintf("cpm: unhandled dependency type %s", e.Type))
	}
	return c.AddDate(0, 0, e.Lag)
}

// backwardConstraint is the latest finish a predecessor of succ may take.
func backwardConstraint(succ *TaskSchedule, duration int, e graph.Edge) time.Time {
	var c time.Time
	switch e.Type {
	case graph.FinishToStart:
		c = succ.LS
	case graph.StartToStart:
		c = succ.LS.AddDate(0, 0, duration)
	case graph.FinishToFinish:
		c = succ.LF
	case graph.StartToFinish:
		c = succ.LF.AddDate(0, 0, duration)
	default:
		panic(fmt.Sprintf("cpm: unhandled dependency type %s", e.Type))
	}
	return c.AddDate(0, 0, -e.Lag)
}

// topoSort performs Kahn's algorithm for topological sorting.
func topoSort(g *graph.TaskGraph) ([]string, error) {
	inDegree := make(map[string]int)
	for id := range g.Tasks {
		inDegree[id] = len(g.RevAdj[id])
	}

	// Start with roots (in-degree 0), already sorted by Build
	queue := append([]string(nil), g.Roots...)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, succ := range g.Adj[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Tasks) {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d tasks sorted)", len(order), len(g.Tasks))
	}

	return order, nil
}

// computeWaves groups tasks by their earliest start date.
func computeWaves(result *CPMResult) []Wave {
	esGroups := make(map[int64][]string)
	starts := make(map[int64]time.Time)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		key := es.Unix()
		esGroups[key] = append(esGroups[key], id)
		starts[key] = es
	}

	keys := make([]int64, 0, len(esGroups))
	for k := range esGroups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	waves := make([]Wave, len(keys))
	for i, k := range keys {
		taskIDs := esGroups[k]
		sort.Strings(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical tasks first within a wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			aCrit := result.Tasks[taskIDs[a]].IsCritical
			bCrit := result.Tasks[taskIDs[b]].IsCritical
			if aCrit != bCrit {
				return aCrit
			}
			return false
		})

		waves[i] = Wave{
			Index:      i,
			Start:      starts[k],
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}
