package workflow

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/taskflow/internal/graph"
)

// Format is the encoding of a workflow document.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var fallbackLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// rawTask mirrors graph.Task with dates left as strings so several layouts
// can be accepted.
type rawTask struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	StartDate    string   `json:"startDate" yaml:"startDate"`
	EndDate      string   `json:"endDate" yaml:"endDate"`
	Duration     *int     `json:"duration" yaml:"duration"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies"`
}

type rawWorkflow struct {
	Tasks []rawTask    `json:"tasks" yaml:"tasks"`
	Edges []graph.Edge `json:"edges" yaml:"edges"`
}

// Loader decodes workflow snapshots exported by the task service.
type Loader struct {
	// Path is a gjson path selecting the workflow inside a larger JSON
	// document, e.g. "data.workflow". Empty means the whole document.
	Path string

	// DateLayout is tried before the built-in layouts.
	DateLayout string

	// DeriveEdges builds the edge list from declared dependencies when the
	// document has no edges.
	DeriveEdges bool
	DefaultType graph.DependencyType

	Log logr.Logger
}

// LoadFile reads a workflow from path, or from stdin when path is "-".
func (l *Loader) LoadFile(path string) (graph.Workflow, error) {
	if path == "-" {
		return l.Load(os.Stdin, FormatAuto)
	}

	f, err := os.Open(path)
	if err != nil {
		return graph.Workflow{}, errors.Wrap(err, "open workflow")
	}
	defer f.Close()

	wf, err := l.Load(f, formatFromExt(path))
	if err != nil {
		return graph.Workflow{}, errors.Wrapf(err, "load %s", path)
	}
	return wf, nil
}

func formatFromExt(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// sniff guesses the format from the first non-space byte.
func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Load decodes a workflow document from r.
func (l *Loader) Load(r io.Reader, format Format) (graph.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return graph.Workflow{}, errors.Wrap(err, "read workflow")
	}
	if format == FormatAuto {
		format = sniff(data)
	}

	if l.Path != "" {
		if format != FormatJSON {
			return graph.Workflow{}, errors.Errorf("path %q requires a JSON document", l.Path)
		}
		if !gjson.ValidBytes(data) {
			return graph.Workflow{}, errors.New("invalid JSON document")
		}
		res := gjson.GetBytes(data, l.Path)
		if !res.Exists() {
			return graph.Workflow{}, errors.Errorf("path %q not found in document", l.Path)
		}
		l.Log.V(1).Info("selected workflow payload", "path", l.Path, "bytes", len(res.Raw))
		data = []byte(res.Raw)
	}

	var raw rawWorkflow
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		return graph.Workflow{}, errors.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return graph.Workflow{}, errors.Wrapf(err, "decode %s workflow", format)
	}

	return l.convert(raw)
}

func (l *Loader) convert(raw rawWorkflow) (graph.Workflow, error) {
	wf := graph.Workflow{Edges: raw.Edges}
	for i, rt := range raw.Tasks {
		if rt.ID == "" {
			return graph.Workflow{}, errors.Errorf("task %d: missing id", i)
		}
		start, err := l.parseDate(rt.StartDate)
		if err != nil {
			return graph.Workflow{}, errors.Wrapf(err, "task %s: startDate", rt.ID)
		}
		end, err := l.parseDate(rt.EndDate)
		if err != nil {
			return graph.Workflow{}, errors.Wrapf(err, "task %s: endDate", rt.ID)
		}

		t := graph.Task{
			ID:           rt.ID,
			Title:        rt.Title,
			StartDate:    start,
			EndDate:      end,
			Dependencies: rt.Dependencies,
		}
		if rt.Duration != nil {
			t.Duration = *rt.Duration
		} else {
			t.Duration = int(end.Sub(start).Hours() / 24)
		}
		if t.Title == "" {
			t.Title = t.ID
		}
		wf.Tasks = append(wf.Tasks, t)
	}

	if l.DeriveEdges && len(wf.Edges) == 0 {
		wf.Edges = graph.DeriveEdges(wf.Tasks, l.DefaultType)
		l.Log.V(1).Info("derived edges from declared dependencies", "edges", len(wf.Edges))
	}

	l.Log.V(1).Info("loaded workflow", "tasks", len(wf.Tasks), "edges", len(wf.Edges))
	return wf, nil
}

func (l *Loader) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	layouts := fallbackLayouts
	if l.DateLayout != "" {
		layouts = append([]string{l.DateLayout}, fallbackLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised date %q", s)
}

// Save writes wf as indented JSON with dates in YYYY-MM-DD form.
func Save(path string, wf graph.Workflow) error {
	data, err := Marshal(wf)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write workflow")
}

// Marshal encodes wf the same way Save does.
func Marshal(wf graph.Workflow) ([]byte, error) {
	out := struct {
		Tasks []rawTask    `json:"tasks"`
		Edges []graph.Edge `json:"edges"`
	}{Edges: wf.Edges}

	for _, t := range wf.Tasks {
		d := t.Duration
		out.Tasks = append(out.Tasks, rawTask{
			ID:           t.ID,
			Title:        t.Title,
			StartDate:    t.StartDate.Format("2006-01-02"),
			EndDate:      t.EndDate.Format("2006-01-02"),
			Duration:     &d,
			Dependencies: t.Dependencies,
		})
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal workflow")
	}
	return append(data, '\n'), nil
}
