package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/taskflow/internal/graph"
)

const jsonDoc = `{
  "tasks": [
    {"id": "T1", "title": "Design", "startDate": "2025-01-01", "endDate": "2025-01-05", "duration": 4},
    {"id": "T2", "title": "Build", "startDate": "2025-01-05", "endDate": "2025-01-10", "duration": 5, "dependencies": ["T1"]}
  ],
  "edges": [
    {"source": "T1", "target": "T2", "dependencyType": "finish-to-start", "lag": 0}
  ]
}`

const yamlDoc = `
tasks:
  - id: T1
    title: Design
    startDate: 2025-01-01
    endDate: 2025-01-05
  - id: T2
    startDate: 2025-01-05T00:00:00Z
    endDate: 2025-01-10
    dependencies: [T1]
edges:
  - source: T1
    target: T2
    dependencyType: start-to-start
    lag: -1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	l := &Loader{}
	wf, err := l.LoadFile(writeFile(t, "wf.json", jsonDoc))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if len(wf.Tasks) != 2 || len(wf.Edges) != 1 {
		t.Fatalf("expected 2 tasks and 1 edge, got %d and %d", len(wf.Tasks), len(wf.Edges))
	}
	if !wf.Tasks[0].EndDate.Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end date %s", wf.Tasks[0].EndDate)
	}
	if wf.Tasks[1].Dependencies[0] != "T1" {
		t.Errorf("expected T2 to depend on T1, got %v", wf.Tasks[1].Dependencies)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	l := &Loader{}
	wf, err := l.LoadFile(writeFile(t, "wf.yaml", yamlDoc))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if wf.Edges[0].Type != graph.StartToStart || wf.Edges[0].Lag != -1 {
		t.Errorf("unexpected edge %+v", wf.Edges[0])
	}
	// Duration derived from the date window when omitted.
	if wf.Tasks[0].Duration != 4 || wf.Tasks[1].Duration != 5 {
		t.Errorf("expected derived durations 4 and 5, got %d and %d", wf.Tasks[0].Duration, wf.Tasks[1].Duration)
	}
	// Title falls back to the ID.
	if wf.Tasks[1].Title != "T2" {
		t.Errorf("expected title T2, got %q", wf.Tasks[1].Title)
	}
}

func TestLoad_SniffsFormat(t *testing.T) {
	l := &Loader{}
	if _, err := l.Load(strings.NewReader(jsonDoc), FormatAuto); err != nil {
		t.Errorf("json sniff: %v", err)
	}
	if _, err := l.Load(strings.NewReader(yamlDoc), FormatAuto); err != nil {
		t.Errorf("yaml sniff: %v", err)
	}
}

func TestLoad_Path(t *testing.T) {
	envelope := `{"status": "ok", "data": {"workflow": ` + jsonDoc + `}}`

	l := &Loader{Path: "data.workflow"}
	wf, err := l.Load(strings.NewReader(envelope), FormatJSON)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(wf.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(wf.Tasks))
	}

	l.Path = "data.missing"
	if _, err := l.Load(strings.NewReader(envelope), FormatJSON); err == nil {
		t.Error("expected error for missing path")
	}

	l.Path = "data.workflow"
	if _, err := l.Load(strings.NewReader(yamlDoc), FormatYAML); err == nil {
		t.Error("expected error for path on YAML")
	}
}

func TestLoad_DeriveEdges(t *testing.T) {
	doc := `{"tasks": [
		{"id": "a", "startDate": "2025-01-01", "endDate": "2025-01-02"},
		{"id": "b", "startDate": "2025-01-02", "endDate": "2025-01-03", "dependencies": ["a"]}
	]}`

	l := &Loader{DeriveEdges: true, DefaultType: graph.FinishToFinish}
	wf, err := l.Load(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(wf.Edges) != 1 || wf.Edges[0].Source != "a" || wf.Edges[0].Type != graph.FinishToFinish {
		t.Errorf("unexpected derived edges %+v", wf.Edges)
	}
}

func TestLoad_Errors(t *testing.T) {
	l := &Loader{}
	cases := map[string]string{
		"missing id":     `{"tasks": [{"startDate": "2025-01-01", "endDate": "2025-01-02"}]}`,
		"bad date":       `{"tasks": [{"id": "a", "startDate": "01/02/2025", "endDate": "2025-01-02"}]}`,
		"missing date":   `{"tasks": [{"id": "a", "endDate": "2025-01-02"}]}`,
		"bad edge type":  `{"tasks": [], "edges": [{"source": "a", "target": "b", "dependencyType": "later"}]}`,
		"malformed json": `{"tasks": [`,
	}
	for name, doc := range cases {
		if _, err := l.Load(strings.NewReader(doc), FormatJSON); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_CustomDateLayout(t *testing.T) {
	doc := `{"tasks": [{"id": "a", "startDate": "02/01/2025", "endDate": "05/01/2025"}]}`
	l := &Loader{DateLayout: "02/01/2006"}
	wf, err := l.Load(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if wf.Tasks[0].Duration != 3 {
		t.Errorf("expected duration 3, got %d", wf.Tasks[0].Duration)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	l := &Loader{}
	wf, err := l.Load(strings.NewReader(jsonDoc), FormatJSON)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := Save(path, wf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Tasks) != 2 || again.Tasks[1].Duration != 5 || !again.Tasks[1].StartDate.Equal(wf.Tasks[1].StartDate) {
		t.Errorf("round trip mismatch: %+v", again.Tasks)
	}
}
