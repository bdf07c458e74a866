package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/ui"
)

// --- Graph types (matches the editor's Graph schema) ---

type GraphNode struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Slack      *int   `json:"slack,omitempty"`
	IsCritical bool   `json:"is_critical"`
	WaveIndex  int    `json:"wave_index"`
}

type GraphEdge struct {
	From           string `json:"from"`
	To             string `json:"to"`
	DependencyType string `json:"dependency_type"`
	Lag            int    `json:"lag"`
	Dangling       bool   `json:"dangling,omitempty"`
}

type GraphMetadata struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	Valid      bool   `json:"valid"`
	TotalTasks int    `json:"total_tasks"`
	TotalWaves int    `json:"total_waves"`

	// Entry and exit tasks, ignoring dangling edges.
	Roots  []string `json:"roots"`
	Leaves []string `json:"leaves"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []string      `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// Graph converts the report into the normalised Graph the editor renders.
// Slack and waves come from the full analysis when it is available.
func (r *Report) Graph() *Graph {
	g := &Graph{
		Nodes:        make([]GraphNode, 0, len(r.graph.Order)),
		Edges:        make([]GraphEdge, 0, len(r.graph.Edges)),
		CriticalPath: r.CriticalPath,
		Metadata: GraphMetadata{
			ID:         r.ID,
			CreatedAt:  r.GeneratedAt.Format(time.RFC3339),
			Valid:      r.Validation.Valid,
			TotalTasks: r.graph.TaskCount(),
		},
	}
	if g.CriticalPath == nil {
		g.CriticalPath = []string{}
	}
	known := r.graph.Filter(func(*graph.Task) bool { return true })
	g.Metadata.Roots = append([]string{}, known.Roots...)
	g.Metadata.Leaves = append([]string{}, known.Leaves...)

	for _, id := range r.graph.Order {
		t := r.graph.Tasks[id]
		n := GraphNode{
			ID:        id,
			Title:     t.Title,
			StartDate: t.StartDate.Format(dateLayout),
			EndDate:   t.EndDate.Format(dateLayout),
		}
		if r.Full != nil {
			if s, ok := r.Full.Tasks[id]; ok {
				slack := s.Slack
				n.Slack = &slack
				n.IsCritical = s.IsCritical
				n.WaveIndex = s.Wave
			}
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, e := range r.graph.Edges {
		_, okS := r.graph.Tasks[e.Source]
		_, okT := r.graph.Tasks[e.Target]
		g.Edges = append(g.Edges, GraphEdge{
			From:           e.Source,
			To:             e.Target,
			DependencyType: e.Type.String(),
			Lag:            e.Lag,
			Dangling:       !okS || !okT,
		})
	}

	if r.Full != nil {
		g.Metadata.TotalWaves = len(r.Full.Waves)
	}
	return g
}

func (r *Report) isCritical(id string) bool {
	if r.Full == nil {
		return false
	}
	s, ok := r.Full.Tasks[id]
	return ok && s.IsCritical
}

// WriteDOT renders the graph in Graphviz DOT format. Critical tasks and the
// edges between them are drawn in red; non finish-to-start edges are labelled.
func (r *Report) WriteDOT(w io.Writer) {
	fmt.Fprintln(w, "digraph taskflow {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	for _, id := range r.graph.Order {
		task := r.graph.Tasks[id]
		attrs := fmt.Sprintf(`label="%s\n%s"`, dotEscape(id), dotEscape(task.Title))
		if r.isCritical(id) {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(w, "  %q [%s];\n", id, attrs)
	}

	fmt.Fprintln(w)

	for _, e := range r.graph.Edges {
		var attrs []string
		if e.Type != graph.FinishToStart || e.Lag != 0 {
			attrs = append(attrs, fmt.Sprintf("label=%q", edgeLabel(e)))
		}
		if r.isCritical(e.Source) && r.isCritical(e.Target) {
			attrs = append(attrs, "color=red", "penwidth=2")
		}
		style := ""
		if len(attrs) > 0 {
			style = " [" + strings.Join(attrs, ", ") + "]"
		}
		fmt.Fprintf(w, "  %q -> %q%s;\n", e.Source, e.Target, style)
	}

	fmt.Fprintln(w, "}")
}

// dotEscape escapes s for use inside a quoted DOT string.
func dotEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// edgeLabel abbreviates an edge's type and lag, e.g. "SS+2".
func edgeLabel(e graph.Edge) string {
	abbr := map[graph.DependencyType]string{
		graph.FinishToStart:  "FS",
		graph.StartToStart:   "SS",
		graph.FinishToFinish: "FF",
		graph.StartToFinish:  "SF",
	}[e.Type]
	if e.Lag == 0 {
		return abbr
	}
	return fmt.Sprintf("%s%+d", abbr, e.Lag)
}

// WriteASCII renders the graph grouped by wave when the full analysis is
// available, otherwise in input order.
func (r *Report) WriteASCII(w io.Writer) {
	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task Dependency Graph"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════"))
	fmt.Fprintln(w)

	if r.Full == nil {
		for _, id := range r.graph.Order {
			r.writeASCIITask(w, id)
		}
		fmt.Fprintln(w)
		return
	}

	for _, wave := range r.Full.Waves {
		fmt.Fprintf(w, "%s 🌊 Wave %d · %s %s\n", ui.Cyan("──"), wave.Index+1,
			wave.Start.Format(dateLayout), ui.Cyan("──────────────────────"))
		for _, id := range wave.TaskIDs {
			r.writeASCIITask(w, id)
		}
		fmt.Fprintln(w)
	}
}

func (r *Report) writeASCIITask(w io.Writer, id string) {
	crit := " "
	if r.isCritical(id) {
		crit = ui.BoldYellow("⚡")
	}
	fmt.Fprintf(w, "  %s [%s] %s\n", crit, ui.BoldMagenta(id), r.graph.Tasks[id].Title)

	for _, target := range r.graph.Adj[id] {
		e, _ := r.graph.Edge(id, target)
		fmt.Fprintf(w, "      %s %s %s\n", ui.Dim("└──→"), ui.Magenta(target), ui.Dim(edgeLabel(e)))
	}
}
