// Package validate checks a task dependency graph before it is scheduled.
//
// Every check returns a Result rather than an error. Structural problems
// (unknown tasks, self-dependencies, cycles, dangling declared dependencies)
// make the result invalid. Consistency drift between the edge list and the
// tasks' declared dependencies, and date conflicts implied by an edge's
// dependency type, are reported as warnings only.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joshharrison/taskflow/internal/graph"
)

const (
	MsgSourceNotFound = "Source task not found"
	MsgTargetNotFound = "Target task not found"
	MsgSelfDependency = "Task cannot depend on itself"
	MsgCircular       = "Workflow contains circular dependencies"
)

// ErrInvalidWorkflow is wrapped by every *ValidationError.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Result is the outcome of a validation check.
type Result struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationError carries the fatal issues of a failed Result.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidWorkflow, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidWorkflow }

// Err returns a *ValidationError when the result is invalid, nil otherwise.
// Warnings never produce an error.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Issues: strings.Split(r.Error, "; ")}
}

func newResult(errs, warnings []string) Result {
	r := Result{Valid: len(errs) == 0}
	if len(errs) > 0 {
		r.Error = strings.Join(errs, "; ")
	}
	if len(warnings) > 0 {
		r.Warnings = warnings
	}
	return r
}

func indexTasks(tasks []graph.Task) map[string]*graph.Task {
	idx := make(map[string]*graph.Task, len(tasks))
	for i := range tasks {
		if _, dup := idx[tasks[i].ID]; !dup {
			idx[tasks[i].ID] = &tasks[i]
		}
	}
	return idx
}

// ValidateDependency checks whether sourceID -> targetID may be added as an edge.
// A source that ends after the target starts is a warning; the caller decides
// whether to allow it.
func ValidateDependency(sourceID, targetID string, tasks []graph.Task) Result {
	idx := indexTasks(tasks)
	source, hasSource := idx[sourceID]
	target, hasTarget := idx[targetID]

	var errs []string
	if !hasSource {
		errs = append(errs, MsgSourceNotFound)
	}
	if !hasTarget {
		errs = append(errs, MsgTargetNotFound)
	}
	if sourceID == targetID {
		errs = append(errs, MsgSelfDependency)
	}
	if len(errs) > 0 {
		return newResult(errs, nil)
	}

	var warnings []string
	if source.EndDate.After(target.StartDate) {
		warnings = append(warnings, fmt.Sprintf("Source task %q ends after target task %q starts", source.Title, target.Title))
	}
	return newResult(nil, warnings)
}

// DetectCycles reports whether the edges contain a directed cycle. Every edge
// source is used as a DFS root so disconnected components are all checked.
func DetectCycles(edges []graph.Edge) bool {
	adj := graph.BuildAdjacency(edges)

	roots := make([]string, 0, len(adj))
	for id := range adj {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recursionStack[node] = true
		for _, next := range adj[node] {
			if recursionStack[next] {
				return true
			}
			if !visited[next] && hasCycle(next) {
				return true
			}
		}
		recursionStack[node] = false
		return false
	}

	for _, id := range roots {
		if !visited[id] && hasCycle(id) {
			return true
		}
	}
	return false
}

// ValidateProposedEdge checks a new edge before it is added to a workflow:
// the ValidateDependency checks, then whether it would close a cycle with
// the existing edges.
func ValidateProposedEdge(e graph.Edge, tasks []graph.Task, edges []graph.Edge) Result {
	r := ValidateDependency(e.Source, e.Target, tasks)
	if !r.Valid {
		return r
	}
	proposed := append(append(make([]graph.Edge, 0, len(edges)+1), edges...), e)
	if DetectCycles(proposed) {
		return newResult([]string{MsgCircular}, r.Warnings)
	}
	return r
}

// ValidateWorkflowIntegrity aggregates every check over a workflow snapshot.
// Only cycles and dangling declared dependencies make the result invalid.
func ValidateWorkflowIntegrity(tasks []graph.Task, edges []graph.Edge) Result {
	idx := indexTasks(tasks)
	var errs, warnings []string

	if DetectCycles(edges) {
		errs = append(errs, MsgCircular)
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := idx[dep]; !ok {
				errs = append(errs, fmt.Sprintf("Task %q (%s) depends on non-existent task %s", t.Title, t.ID, dep))
			}
		}
	}

	edgePairs := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		edgePairs[e.Pair()] = true
	}
	declared := make(map[[2]string]bool)
	var declaredOrder []graph.Edge
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			d := graph.Edge{Source: dep, Target: t.ID}
			if !declared[d.Pair()] {
				declared[d.Pair()] = true
				declaredOrder = append(declaredOrder, d)
			}
		}
	}

	var edgeOnly []string
	seen := make(map[[2]string]bool)
	for _, e := range edges {
		if !declared[e.Pair()] && !seen[e.Pair()] {
			seen[e.Pair()] = true
			edgeOnly = append(edgeOnly, e.Key())
		}
	}
	if len(edgeOnly) > 0 {
		warnings = append(warnings, "Edges without corresponding task dependencies: "+strings.Join(edgeOnly, ", "))
	}

	var depOnly []string
	for _, d := range declaredOrder {
		if !edgePairs[d.Pair()] {
			depOnly = append(depOnly, d.Key())
		}
	}
	if len(depOnly) > 0 {
		warnings = append(warnings, "Task dependencies without corresponding edges: "+strings.Join(depOnly, ", "))
	}

	for _, e := range edges {
		source, okS := idx[e.Source]
		target, okT := idx[e.Target]
		if !okS || !okT {
			continue
		}
		if w := schedulingConflict(e, source, target); w != "" {
			warnings = append(warnings, w)
		}
	}

	return newResult(errs, warnings)
}

// schedulingConflict describes a date conflict implied by the edge type, or
// returns "" when the nominal dates already satisfy it. Finish-to-finish and
// start-to-finish edges are not checked.
func schedulingConflict(e graph.Edge, source, target *graph.Task) string {
	switch e.Type {
	case graph.FinishToStart:
		if source.EndDate.After(target.StartDate) {
			return fmt.Sprintf("Scheduling conflict: %q ends after %q starts (%s)", source.Title, target.Title, e.Type)
		}
	case graph.StartToStart:
		if source.StartDate.After(target.StartDate) {
			return fmt.Sprintf("Scheduling conflict: %q starts after %q starts (%s)", source.Title, target.Title, e.Type)
		}
	case graph.FinishToFinish, graph.StartToFinish:
	}
	return ""
}

// ValidateEdges checks edge values on their own: self-loops are fatal,
// repeated source-target pairs are warnings.
func ValidateEdges(edges []graph.Edge) Result {
	var errs, warnings []string
	seen := make(map[[2]string]int)
	for _, e := range edges {
		if e.Source == e.Target {
			errs = append(errs, fmt.Sprintf("Edge %s: %s", e.Key(), MsgSelfDependency))
		}
		seen[e.Pair()]++
		if seen[e.Pair()] == 2 {
			warnings = append(warnings, fmt.Sprintf("Duplicate edge %s", e.Key()))
		}
	}
	return newResult(errs, warnings)
}

// Merge combines results: invalid if any input is invalid, warnings concatenated.
func Merge(results ...Result) Result {
	var errs, warnings []string
	for _, r := range results {
		if r.Error != "" {
			errs = append(errs, r.Error)
		}
		warnings = append(warnings, r.Warnings...)
	}
	return newResult(errs, warnings)
}
