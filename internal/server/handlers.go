package server

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/reporter"
	"github.com/joshharrison/taskflow/internal/schedule"
	"github.com/joshharrison/taskflow/internal/validate"
	"github.com/joshharrison/taskflow/internal/workflow"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readBody reads a bounded request body, writing a 400 on failure.
func readBody(c *gin.Context) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "request body exceeds maximum size of 4MB",
		})
		return nil, false
	}
	return data, true
}

// bindWorkflow decodes a workflow document from the request body.
func (s *Server) bindWorkflow(c *gin.Context, data []byte) (graph.Workflow, bool) {
	wf, err := s.loader.Load(bytes.NewReader(data), workflow.FormatJSON)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return graph.Workflow{}, false
	}
	return wf, true
}

// handleValidateDependency checks a proposed edge against a task list:
// {"sourceId": "...", "targetId": "...", "tasks": [...], "edges": [...]}.
// The edge is also rejected if it would close a cycle with the given edges.
func (s *Server) handleValidateDependency(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}

	source := gjson.GetBytes(data, "sourceId").String()
	target := gjson.GetBytes(data, "targetId").String()
	if source == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "sourceId and targetId are required",
		})
		return
	}

	wf, ok := s.bindWorkflow(c, data)
	if !ok {
		return
	}

	result := validate.ValidateProposedEdge(graph.Edge{Source: source, Target: target}, wf.Tasks, wf.Edges)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (s *Server) handleValidateWorkflow(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	wf, ok := s.bindWorkflow(c, data)
	if !ok {
		return
	}

	result := validate.ValidateWorkflowIntegrity(wf.Tasks, wf.Edges)
	resp := gin.H{
		"success": true,
		"result":  result,
	}
	if cycle := graph.Build(wf).DetectCycle(); cycle != nil {
		resp["cycle"] = cycle
	}
	c.JSON(http.StatusOK, resp)
}

// handleSchedule returns the full analysis report. Invalid workflows get a
// 422 carrying the validation result.
func (s *Server) handleSchedule(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	wf, ok := s.bindWorkflow(c, data)
	if !ok {
		return
	}

	rpt := reporter.Build("", wf)
	if !rpt.Validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   rpt.Validation.Error,
			"result":  rpt.Validation,
		})
		return
	}

	if c.Query("honourEdges") == "true" {
		rpt.Direct = schedule.DirectAll(wf.Tasks, wf.Edges, true)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  rpt,
	})
}

// handleCriticalPath returns the direct-neighbour critical path. It does not
// require the workflow to be acyclic.
func (s *Server) handleCriticalPath(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	wf, ok := s.bindWorkflow(c, data)
	if !ok {
		return
	}

	path := schedule.FindCriticalPath(wf.Tasks, wf.Edges)
	if path == nil {
		path = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"criticalPath": path,
	})
}

// handlePostGraph analyses a workflow and keeps its graph for GET /api/graph.
func (s *Server) handlePostGraph(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	wf, ok := s.bindWorkflow(c, data)
	if !ok {
		return
	}

	g := reporter.Build("", wf).Graph()

	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	s.log.V(1).Info("graph updated", "id", g.Metadata.ID, "tasks", g.Metadata.TotalTasks)
	c.JSON(http.StatusCreated, g)
}

func (s *Server) handleGetGraph(c *gin.Context) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no graph loaded",
		})
		return
	}
	c.JSON(http.StatusOK, g)
}
