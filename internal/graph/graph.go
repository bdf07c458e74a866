package graph

import (
	"sort"
)

// BuildAdjacency maps each edge source to its targets, preserving edge order.
// Sources with no outgoing edges are absent. Dangling references are kept.
func BuildAdjacency(edges []Edge) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}

// BuildReverseAdjacency maps each edge target to its sources.
func BuildReverseAdjacency(edges []Edge) map[string][]string {
	rev := make(map[string][]string)
	for _, e := range edges {
		rev[e.Target] = append(rev[e.Target], e.Source)
	}
	return rev
}

// Build indexes a workflow snapshot. It never fails: cycles and references
// to unknown tasks are left in place for the validator to report.
func Build(wf Workflow) *TaskGraph {
	g := &TaskGraph{
		Tasks:     make(map[string]*Task),
		Adj:       make(map[string][]string),
		RevAdj:    make(map[string][]string),
		edgeIndex: make(map[[2]string]Edge),
	}

	for i := range wf.Tasks {
		t := wf.Tasks[i]
		if _, dup := g.Tasks[t.ID]; dup {
			continue
		}
		g.Tasks[t.ID] = &t
		g.Order = append(g.Order, t.ID)
	}

	for _, e := range wf.Edges {
		key := e.Pair()
		if _, seen := g.edgeIndex[key]; seen {
			continue
		}
		g.edgeIndex[key] = e
		g.Edges = append(g.Edges, e)
		g.Adj[e.Source] = append(g.Adj[e.Source], e.Target)
		g.RevAdj[e.Target] = append(g.RevAdj[e.Target], e.Source)
	}

	// Sort adjacency lists for deterministic traversal
	for k := range g.Adj {
		sort.Strings(g.Adj[k])
	}
	for k := range g.RevAdj {
		sort.Strings(g.RevAdj[k])
	}

	for _, id := range g.Order {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}
	sort.Strings(g.Roots)
	sort.Strings(g.Leaves)

	return g
}

// Edge returns the edge from source to target, if present.
func (g *TaskGraph) Edge(source, target string) (Edge, bool) {
	e, ok := g.edgeIndex[[2]string{source, target}]
	return e, ok
}

// TaskCount returns the number of tasks in the graph.
func (g *TaskGraph) TaskCount() int {
	return len(g.Tasks)
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *TaskGraph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.Adj[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				// Reverse to get forward order
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	// Edge sources may reference unknown tasks, so walk those too.
	ids := make([]string, 0, len(g.Adj))
	for id := range g.Adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Filter returns a new TaskGraph containing only tasks matching the predicate.
// Edges survive only when both endpoints are kept, which also drops dangling edges.
func (g *TaskGraph) Filter(pred func(*Task) bool) *TaskGraph {
	var wf Workflow
	keep := make(map[string]bool)
	for _, id := range g.Order {
		t := g.Tasks[id]
		if pred(t) {
			keep[id] = true
			wf.Tasks = append(wf.Tasks, *t)
		}
	}
	for _, e := range g.Edges {
		if keep[e.Source] && keep[e.Target] {
			wf.Edges = append(wf.Edges, e)
		}
	}
	return Build(wf)
}

// DeriveEdges builds one edge per declared dependency, so the edge list can
// be generated from tasks instead of maintained separately.
func DeriveEdges(tasks []Task, defaultType DependencyType) []Edge {
	var edges []Edge
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			edges = append(edges, Edge{Source: dep, Target: t.ID, Type: defaultType})
		}
	}
	return edges
}

// SyncDependencies returns copies of tasks whose Dependencies mirror the
// edge set. Order follows the edge list.
func SyncDependencies(tasks []Task, edges []Edge) []Task {
	rev := BuildReverseAdjacency(edges)
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Dependencies = nil
		seen := make(map[string]bool)
		for _, src := range rev[t.ID] {
			if seen[src] {
				continue
			}
			seen[src] = true
			t.Dependencies = append(t.Dependencies, src)
		}
		out[i] = t
	}
	return out
}
