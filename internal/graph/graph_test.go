package graph

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func chain(ids ...string) Workflow {
	var wf Workflow
	for i, id := range ids {
		t := Task{ID: id, Title: "Task " + id, StartDate: day(1 + i), EndDate: day(2 + i), Duration: 1}
		if i > 0 {
			t.Dependencies = []string{ids[i-1]}
			wf.Edges = append(wf.Edges, Edge{Source: ids[i-1], Target: id})
		}
		wf.Tasks = append(wf.Tasks, t)
	}
	return wf
}

func TestBuildAdjacency_PreservesDirection(t *testing.T) {
	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "c"},
		{Source: "b", Target: "c"},
	}

	adj := BuildAdjacency(edges)
	if len(adj["a"]) != 2 || adj["a"][0] != "b" || adj["a"][1] != "c" {
		t.Errorf("expected a -> [b c], got %v", adj["a"])
	}
	if _, ok := adj["c"]; ok {
		t.Errorf("expected no key for c (no outgoing edges), got %v", adj["c"])
	}

	rev := BuildReverseAdjacency(edges)
	if len(rev["c"]) != 2 {
		t.Errorf("expected c to have 2 sources, got %v", rev["c"])
	}
}

func TestBuildAdjacency_ToleratesDangling(t *testing.T) {
	adj := BuildAdjacency([]Edge{{Source: "ghost", Target: "a"}})
	if len(adj["ghost"]) != 1 {
		t.Errorf("expected dangling source to be indexed, got %v", adj)
	}
}

func TestBuild_SimpleDAG(t *testing.T) {
	// A -> B -> D
	// A -> C -> D
	wf := Workflow{
		Tasks: []Task{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "d"},
			{Source: "c", Target: "d"},
		},
	}

	g := Build(wf)

	if g.TaskCount() != 4 {
		t.Errorf("expected 4 tasks, got %d", g.TaskCount())
	}
	if len(g.Roots) != 1 || g.Roots[0] != "a" {
		t.Errorf("expected roots=[a], got %v", g.Roots)
	}
	if len(g.Leaves) != 1 || g.Leaves[0] != "d" {
		t.Errorf("expected leaves=[d], got %v", g.Leaves)
	}
	if rev := g.RevAdj["d"]; len(rev) != 2 {
		t.Errorf("expected d to have 2 predecessors, got %v", rev)
	}
	if _, ok := g.Edge("a", "c"); !ok {
		t.Error("expected edge a->c to be indexed")
	}
	if _, ok := g.Edge("c", "a"); ok {
		t.Error("edge lookup must be directional")
	}
}

func TestBuild_DeduplicatesEdges(t *testing.T) {
	wf := Workflow{
		Tasks: []Task{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{
			{Source: "a", Target: "b", Lag: 1},
			{Source: "a", Target: "b", Lag: 5},
		},
	}

	g := Build(wf)
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	if e, _ := g.Edge("a", "b"); e.Lag != 1 {
		t.Errorf("expected first edge to win (lag 1), got lag %d", e.Lag)
	}
}

func TestBuild_DoesNotFailOnCycle(t *testing.T) {
	wf := Workflow{
		Tasks: []Task{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	}
	g := Build(wf)
	if g.TaskCount() != 2 {
		t.Errorf("expected 2 tasks, got %d", g.TaskCount())
	}
}

func TestDetectCycle_NoCycle(t *testing.T) {
	g := Build(chain("a", "b", "c"))
	if cycle := g.DetectCycle(); cycle != nil {
		t.Errorf("expected no cycle, got %v", cycle)
	}
}

func TestDetectCycle_WithCycle(t *testing.T) {
	g := Build(Workflow{
		Tasks: []Task{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "a"},
		},
	})

	cycle := g.DetectCycle()
	if cycle == nil {
		t.Fatal("expected cycle, got nil")
	}
	if len(cycle) != 4 || cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("expected closed cycle of 3 nodes, got %v", cycle)
	}
}

func TestDetectCycle_ThroughUnknownTask(t *testing.T) {
	g := Build(Workflow{
		Tasks: []Task{{ID: "a"}},
		Edges: []Edge{{Source: "a", Target: "x"}, {Source: "x", Target: "a"}},
	})
	if g.DetectCycle() == nil {
		t.Error("expected cycle through unknown task x")
	}
}

func TestFilter_DropsEdgesToRemovedTasks(t *testing.T) {
	wf := chain("a", "b", "c")
	wf.Edges = append(wf.Edges, Edge{Source: "c", Target: "ghost"})
	g := Build(wf)

	filtered := g.Filter(func(t *Task) bool { return t.ID != "b" })

	if filtered.TaskCount() != 2 {
		t.Errorf("expected 2 tasks after filter, got %d", filtered.TaskCount())
	}
	if len(filtered.Edges) != 0 {
		t.Errorf("expected no edges after filter, got %v", filtered.Edges)
	}
}

func TestDeriveEdgesAndSync(t *testing.T) {
	tasks := []Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a", "b"}},
	}

	edges := DeriveEdges(tasks, StartToStart)
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.Type != StartToStart {
			t.Errorf("expected start-to-start, got %s", e.Type)
		}
	}

	synced := SyncDependencies([]Task{{ID: "a", Dependencies: []string{"zzz"}}, {ID: "b"}}, []Edge{{Source: "a", Target: "b"}})
	if len(synced[0].Dependencies) != 0 {
		t.Errorf("expected a to lose stale dependency, got %v", synced[0].Dependencies)
	}
	if len(synced[1].Dependencies) != 1 || synced[1].Dependencies[0] != "a" {
		t.Errorf("expected b dependencies=[a], got %v", synced[1].Dependencies)
	}
}

func TestDependencyType_TextRoundTrip(t *testing.T) {
	var e Edge
	if err := json.Unmarshal([]byte(`{"source":"a","target":"b","dependencyType":"finish-to-finish","lag":-1}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != FinishToFinish || e.Lag != -1 {
		t.Errorf("unexpected edge %+v", e)
	}

	if err := json.Unmarshal([]byte(`{"dependencyType":"sideways"}`), &e); err == nil {
		t.Error("expected error for unknown dependency type")
	}

	var y Edge
	if err := yaml.Unmarshal([]byte("source: a\ntarget: b\ndependencyType: start-to-finish\n"), &y); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if y.Type != StartToFinish {
		t.Errorf("expected start-to-finish, got %s", y.Type)
	}
}

func TestParseDependencyType_EmptyIsFinishToStart(t *testing.T) {
	d, err := ParseDependencyType("")
	if err != nil || d != FinishToStart {
		t.Errorf("expected finish-to-start, got %s (%v)", d, err)
	}
}

func TestEdgeDescribe(t *testing.T) {
	if got := (Edge{Source: "a", Target: "b", Type: StartToStart, Lag: 2}).Describe(); got != "a -(start-to-start+2)-> b" {
		t.Errorf("unexpected description %q", got)
	}
	if got := (Edge{Source: "a", Target: "b", Lag: -1}).Describe(); got != "a -(finish-to-start-1)-> b" {
		t.Errorf("unexpected description %q", got)
	}
}
