package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/reporter"
	"github.com/joshharrison/taskflow/internal/workflow"
)

// PostWorkflow sends wf to a running server's /api/graph endpoint and returns
// the graph it stored.
func PostWorkflow(ctx context.Context, baseURL string, wf graph.Workflow) (*reporter.Graph, error) {
	data, err := workflow.Marshal(wf)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/graph", bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "POST /api/graph")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, errors.Errorf("POST /api/graph returned %d", resp.StatusCode)
	}

	var g reporter.Graph
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, errors.Wrap(err, "decode graph")
	}
	return &g, nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
