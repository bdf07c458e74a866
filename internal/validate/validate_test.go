package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/taskflow/internal/graph"
)

func jan(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func task(id string, start, end int, deps ...string) graph.Task {
	return graph.Task{
		ID:           id,
		Title:        "Task " + strings.ToUpper(id),
		StartDate:    jan(start),
		EndDate:      jan(end),
		Duration:     end - start,
		Dependencies: deps,
	}
}

func fs(source, target string) graph.Edge {
	return graph.Edge{Source: source, Target: target, Type: graph.FinishToStart}
}

func assertValid(t *testing.T, r Result) {
	t.Helper()
	if !r.Valid {
		t.Fatalf("expected valid result, got error %q", r.Error)
	}
	if r.Error != "" {
		t.Errorf("valid result should carry no error, got %q", r.Error)
	}
}

func assertInvalid(t *testing.T, r Result, contains string) {
	t.Helper()
	if r.Valid {
		t.Fatalf("expected invalid result containing %q", contains)
	}
	if !strings.Contains(r.Error, contains) {
		t.Errorf("expected error to contain %q, got %q", contains, r.Error)
	}
}

func TestValidateDependency_SelfDependency(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 2), task("b", 2, 3)}
	for _, id := range []string{"a", "b"} {
		r := ValidateDependency(id, id, tasks)
		assertInvalid(t, r, MsgSelfDependency)
	}
}

func TestValidateDependency_MissingTasks(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 2)}

	assertInvalid(t, ValidateDependency("x", "a", tasks), MsgSourceNotFound)
	assertInvalid(t, ValidateDependency("a", "x", tasks), MsgTargetNotFound)

	r := ValidateDependency("x", "y", tasks)
	assertInvalid(t, r, MsgSourceNotFound)
	if !strings.Contains(r.Error, MsgTargetNotFound) {
		t.Errorf("expected both missing tasks reported, got %q", r.Error)
	}
}

func TestValidateDependency_DateConflictIsWarning(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 6), task("b", 5, 8)}

	r := ValidateDependency("a", "b", tasks)
	assertValid(t, r)
	if len(r.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "Task A") || !strings.Contains(r.Warnings[0], "Task B") {
		t.Errorf("warning should name both tasks, got %q", r.Warnings[0])
	}
}

func TestValidateDependency_Clean(t *testing.T) {
	r := ValidateDependency("a", "b", []graph.Task{task("a", 1, 5), task("b", 5, 8)})
	assertValid(t, r)
	if r.Warnings != nil {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
}

func TestDetectCycles(t *testing.T) {
	cyclic := []graph.Edge{fs("a", "b"), fs("b", "c"), fs("c", "a")}
	if !DetectCycles(cyclic) {
		t.Error("expected a->b->c->a to be cyclic")
	}

	dag := []graph.Edge{fs("a", "b"), fs("b", "c")}
	if DetectCycles(dag) {
		t.Error("expected a->b->c to be acyclic")
	}

	// A disconnected edge must not change either answer.
	if !DetectCycles(append(cyclic, fs("x", "y"))) {
		t.Error("unrelated edge hid the cycle")
	}
	if DetectCycles(append(dag, fs("x", "y"))) {
		t.Error("unrelated edge introduced a cycle")
	}
}

func TestDetectCycles_DiamondIsNotACycle(t *testing.T) {
	edges := []graph.Edge{fs("a", "b"), fs("a", "c"), fs("b", "d"), fs("c", "d")}
	if DetectCycles(edges) {
		t.Error("diamond reported as cyclic")
	}
}

func TestDetectCycles_SelfLoopAndEmpty(t *testing.T) {
	if !DetectCycles([]graph.Edge{fs("a", "a")}) {
		t.Error("self loop should be a cycle")
	}
	if DetectCycles(nil) {
		t.Error("empty edge set should be acyclic")
	}
}

func TestValidateWorkflowIntegrity_EndToEnd(t *testing.T) {
	tasks := []graph.Task{
		task("t1", 1, 5),
		task("t2", 5, 10, "t1"),
	}
	edges := []graph.Edge{fs("t1", "t2")}

	r := ValidateWorkflowIntegrity(tasks, edges)
	assertValid(t, r)
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
}

func TestValidateWorkflowIntegrity_CyclesMatchDetectCycles(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 2, "c"), task("b", 2, 3, "a"), task("c", 3, 4, "b")}
	cases := [][]graph.Edge{
		{fs("a", "b"), fs("b", "c"), fs("c", "a")},
		{fs("a", "b"), fs("b", "c")},
		{fs("a", "a")},
		nil,
	}

	for _, edges := range cases {
		r := ValidateWorkflowIntegrity(tasks, edges)
		mentions := strings.Contains(r.Error, "circular dependencies")
		if mentions != DetectCycles(edges) {
			t.Errorf("edges %v: circular error=%v, DetectCycles=%v", edges, mentions, DetectCycles(edges))
		}
		if mentions && r.Valid {
			t.Errorf("edges %v: cyclic workflow reported valid", edges)
		}
	}
}

func TestValidateWorkflowIntegrity_DanglingDependency(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 2), task("b", 2, 3, "a", "ghost")}
	edges := []graph.Edge{fs("a", "b")}

	r := ValidateWorkflowIntegrity(tasks, edges)
	assertInvalid(t, r, "ghost")
	if !strings.Contains(r.Error, "Task B") {
		t.Errorf("error should name the dependent task, got %q", r.Error)
	}
}

func TestValidateWorkflowIntegrity_ConsistencyWarnings(t *testing.T) {
	tasks := []graph.Task{
		task("a", 1, 2),
		task("b", 2, 3, "a"),
		task("c", 3, 4),
	}
	// a->b declared and present; b->c edge only; a->b dep matched.
	edges := []graph.Edge{fs("a", "b"), fs("b", "c")}

	r := ValidateWorkflowIntegrity(tasks, edges)
	assertValid(t, r)
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "b-c") {
		t.Fatalf("expected edge-only warning for b-c, got %v", r.Warnings)
	}

	// Declared dependency with no edge.
	r = ValidateWorkflowIntegrity(tasks, nil)
	assertValid(t, r)
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "without corresponding edges: a-b") {
		t.Fatalf("expected dependency-only warning for a-b, got %v", r.Warnings)
	}
}

func TestValidateWorkflowIntegrity_HyphenatedIDs(t *testing.T) {
	// Edge a-b->c and declared a->b-c both render as "a-b-c".
	tasks := []graph.Task{
		task("a", 1, 2),
		task("a-b", 1, 2),
		task("c", 3, 4),
		task("b-c", 3, 4, "a"),
	}
	r := ValidateWorkflowIntegrity(tasks, []graph.Edge{fs("a-b", "c")})
	assertValid(t, r)
	if len(r.Warnings) != 2 {
		t.Fatalf("expected both mismatch warnings, got %v", r.Warnings)
	}
	if !strings.HasPrefix(r.Warnings[0], "Edges without corresponding task dependencies") ||
		!strings.HasPrefix(r.Warnings[1], "Task dependencies without corresponding edges") {
		t.Errorf("unexpected warnings %v", r.Warnings)
	}
}

func TestValidateWorkflowIntegrity_SchedulingConflicts(t *testing.T) {
	tasks := []graph.Task{
		task("a", 3, 8),
		task("b", 5, 9, "a"),
	}

	tests := []struct {
		name string
		typ  graph.DependencyType
		want bool
	}{
		{"finish-to-start", graph.FinishToStart, true},  // a ends 8 > b starts 5
		{"start-to-start", graph.StartToStart, false},   // a starts 3 <= b starts 5
		{"finish-to-finish", graph.FinishToFinish, false},
		{"start-to-finish", graph.StartToFinish, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			edges := []graph.Edge{{Source: "a", Target: "b", Type: tc.typ}}
			r := ValidateWorkflowIntegrity(tasks, edges)
			assertValid(t, r)
			got := len(r.Warnings) > 0
			if got != tc.want {
				t.Errorf("conflict warning=%v, want %v (%v)", got, tc.want, r.Warnings)
			}
		})
	}

	late := []graph.Task{task("a", 6, 8), task("b", 5, 9, "a")}
	r := ValidateWorkflowIntegrity(late, []graph.Edge{{Source: "a", Target: "b", Type: graph.StartToStart}})
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "starts after") {
		t.Errorf("expected start-to-start conflict, got %v", r.Warnings)
	}
}

func TestResultErr(t *testing.T) {
	ok := Result{Valid: true, Warnings: []string{"w"}}
	if ok.Err() != nil {
		t.Error("warnings must not produce an error")
	}

	bad := ValidateWorkflowIntegrity(
		[]graph.Task{task("a", 1, 2, "b"), task("b", 1, 2, "a")},
		[]graph.Edge{fs("a", "b"), fs("b", "a")},
	)
	err := bad.Err()
	if !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Issues) != 1 {
		t.Errorf("expected one issue, got %v", err)
	}
}

func TestValidateEdges(t *testing.T) {
	r := ValidateEdges([]graph.Edge{fs("a", "b"), fs("a", "b"), fs("a", "b"), fs("c", "c")})
	assertInvalid(t, r, MsgSelfDependency)
	if len(r.Warnings) != 1 {
		t.Errorf("expected a single duplicate warning, got %v", r.Warnings)
	}
}

func TestValidateEdges_HyphenatedIDsAreDistinct(t *testing.T) {
	r := ValidateEdges([]graph.Edge{fs("a-b", "c"), fs("a", "b-c")})
	assertValid(t, r)
	if len(r.Warnings) != 0 {
		t.Errorf("distinct edges reported as duplicates: %v", r.Warnings)
	}
}

func TestMerge(t *testing.T) {
	r := Merge(Result{Valid: true, Warnings: []string{"w1"}}, Result{Valid: false, Error: "boom"}, Result{Valid: true})
	assertInvalid(t, r, "boom")
	if len(r.Warnings) != 1 {
		t.Errorf("expected warnings preserved, got %v", r.Warnings)
	}
}

func TestValidateProposedEdge(t *testing.T) {
	tasks := []graph.Task{task("a", 1, 3), task("b", 3, 5, "a"), task("c", 5, 7, "b")}
	edges := []graph.Edge{fs("a", "b"), fs("b", "c")}

	assertValid(t, ValidateProposedEdge(fs("a", "c"), tasks, edges))
	assertInvalid(t, ValidateProposedEdge(fs("c", "a"), tasks, edges), MsgCircular)
	assertInvalid(t, ValidateProposedEdge(fs("a", "a"), tasks, edges), MsgSelfDependency)
	assertInvalid(t, ValidateProposedEdge(fs("a", "zz"), tasks, edges), MsgTargetNotFound)

	// Warnings from the date check survive the cycle error.
	r := ValidateProposedEdge(fs("c", "a"), tasks, edges)
	if len(r.Warnings) != 1 {
		t.Errorf("expected the date warning to be kept, got %v", r.Warnings)
	}
	if len(edges) != 2 {
		t.Error("input edges must not be modified")
	}
}
