package graph

import (
	"fmt"
	"time"
)

// Task is a single schedulable unit of work. The engine treats tasks as a
// read-only snapshot for the duration of one analysis pass.
type Task struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	StartDate    time.Time `json:"startDate" yaml:"startDate"`
	EndDate      time.Time `json:"endDate" yaml:"endDate"`
	Duration     int       `json:"duration" yaml:"duration"` // days
	Dependencies []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DependencyType is the precedence relation between a source and a target task.
type DependencyType int

const (
	FinishToStart DependencyType = iota
	StartToStart
	FinishToFinish
	StartToFinish
)

// DependencyTypes lists every relation in declaration order.
var DependencyTypes = []DependencyType{FinishToStart, StartToStart, FinishToFinish, StartToFinish}

func (d DependencyType) String() string {
	switch d {
	case FinishToStart:
		return "finish-to-start"
	case StartToStart:
		return "start-to-start"
	case FinishToFinish:
		return "finish-to-finish"
	case StartToFinish:
		return "start-to-finish"
	}
	return fmt.Sprintf("DependencyType(%d)", int(d))
}

// ParseDependencyType maps the wire form to a DependencyType.
// An empty string is finish-to-start.
func ParseDependencyType(s string) (DependencyType, error) {
	if s == "" {
		return FinishToStart, nil
	}
	for _, d := range DependencyTypes {
		if d.String() == s {
			return d, nil
		}
	}
	return FinishToStart, fmt.Errorf("unknown dependency type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DependencyType) MarshalText() ([]byte, error) {
	if d < FinishToStart || d > StartToFinish {
		return nil, fmt.Errorf("invalid dependency type %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DependencyType) UnmarshalText(text []byte) error {
	parsed, err := ParseDependencyType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Edge is a directed dependency: Source constrains Target according to Type,
// shifted by Lag days.
type Edge struct {
	Source string         `json:"source" yaml:"source"`
	Target string         `json:"target" yaml:"target"`
	Type   DependencyType `json:"dependencyType" yaml:"dependencyType"`
	Lag    int            `json:"lag" yaml:"lag"`
}

// Key returns the "source-target" text used in consistency reports. It is
// ambiguous when IDs contain hyphens; use Pair for lookups.
func (e Edge) Key() string {
	return e.Source + "-" + e.Target
}

// Pair identifies the edge by its endpoints.
func (e Edge) Pair() [2]string {
	return [2]string{e.Source, e.Target}
}

// Describe renders the edge as "a -(start-to-start+2)-> b".
func (e Edge) Describe() string {
	if e.Lag == 0 {
		return fmt.Sprintf("%s -(%s)-> %s", e.Source, e.Type, e.Target)
	}
	return fmt.Sprintf("%s -(%s%+d)-> %s", e.Source, e.Type, e.Lag, e.Target)
}

// Workflow is the caller-supplied snapshot analysed by the engine.
type Workflow struct {
	Tasks []Task `json:"tasks" yaml:"tasks"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// TaskGraph is an indexed view over a Workflow. It may contain cycles and
// dangling edges; the validator reports those.
type TaskGraph struct {
	Tasks  map[string]*Task
	Order  []string            // task IDs in input order
	Edges  []Edge              // deduplicated, input order
	Adj    map[string][]string // source -> targets
	RevAdj map[string][]string // target -> sources
	Roots  []string            // known tasks with no inbound edges
	Leaves []string            // known tasks with no outbound edges

	edgeIndex map[[2]string]Edge
}
