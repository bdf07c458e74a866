package claude

import (
	"fmt"
	"slices"

	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/validate"
)

// Skip records an inferred edge that was rejected and why.
type Skip struct {
	Edge   DepEdge `json:"edge"`
	Reason string  `json:"reason"`
}

// Accepted is an inferred edge that passed validation.
type Accepted struct {
	Edge     graph.Edge `json:"edge"`
	Reason   string     `json:"reason"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Filter checks inferred edges against wf. Edges are considered in order and
// each accepted edge is added to the graph before the next is checked, so an
// edge that would close a cycle with earlier ones is skipped. Edges already
// present in wf are skipped as duplicates.
func Filter(result *InferDepsResult, wf graph.Workflow) ([]Accepted, []Skip) {
	existing := make(map[[2]string]bool, len(wf.Edges))
	for _, e := range wf.Edges {
		existing[e.Pair()] = true
	}
	edges := append([]graph.Edge{}, wf.Edges...)

	var accepted []Accepted
	var skipped []Skip
	for _, d := range result.Edges {
		typ, err := graph.ParseDependencyType(d.DependencyType)
		if err != nil {
			skipped = append(skipped, Skip{Edge: d, Reason: err.Error()})
			continue
		}

		check := validate.ValidateDependency(d.Source, d.Target, wf.Tasks)
		if !check.Valid {
			skipped = append(skipped, Skip{Edge: d, Reason: check.Error})
			continue
		}

		e := graph.Edge{Source: d.Source, Target: d.Target, Type: typ, Lag: d.Lag}
		if existing[e.Pair()] {
			skipped = append(skipped, Skip{Edge: d, Reason: "already present"})
			continue
		}

		if validate.DetectCycles(append(edges, e)) {
			skipped = append(skipped, Skip{Edge: d, Reason: fmt.Sprintf("would create cycle: %s -> %s", d.Source, d.Target)})
			continue
		}

		edges = append(edges, e)
		existing[e.Pair()] = true
		accepted = append(accepted, Accepted{Edge: e, Reason: d.Reason, Warnings: check.Warnings})
	}
	return accepted, skipped
}

// Apply adds accepted edges to wf and declares each edge's source as a
// dependency of its target. wf is not modified.
func Apply(wf graph.Workflow, accepted []Accepted) graph.Workflow {
	out := graph.Workflow{
		Tasks: make([]graph.Task, len(wf.Tasks)),
		Edges: append([]graph.Edge{}, wf.Edges...),
	}
	pos := make(map[string]int, len(wf.Tasks))
	for i, t := range wf.Tasks {
		t.Dependencies = append([]string(nil), t.Dependencies...)
		out.Tasks[i] = t
		if _, dup := pos[t.ID]; !dup {
			pos[t.ID] = i
		}
	}

	for _, a := range accepted {
		out.Edges = append(out.Edges, a.Edge)
		i := pos[a.Edge.Target]
		if !slices.Contains(out.Tasks[i].Dependencies, a.Edge.Source) {
			out.Tasks[i].Dependencies = append(out.Tasks[i].Dependencies, a.Edge.Source)
		}
	}
	return out
}
