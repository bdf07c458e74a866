package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/taskflow/internal/graph"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// TaskSummary is the minimal task info sent to Claude for dependency inference.
type TaskSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Duration  int    `json:"duration"`
}

// DepEdge is a single inferred dependency.
type DepEdge struct {
	Source         string `json:"source"` // task that constrains
	Target         string `json:"target"` // task that is constrained
	DependencyType string `json:"dependency_type"`
	Lag            int    `json:"lag"`
	Reason         string `json:"reason"`
}

// InferDepsResult holds the full response from Claude.
type InferDepsResult struct {
	Edges   []DepEdge `json:"edges"`
	Summary string    `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env.
// model defaults to DefaultModel and maxTokens to 4096.
func NewClient(apiKey, model string, maxTokens int64) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Client{inner: inner, model: anthropic.Model(model), maxTokens: maxTokens}, nil
}

// Summaries converts tasks into the form sent to Claude.
func Summaries(tasks []graph.Task) []TaskSummary {
	out := make([]TaskSummary, len(tasks))
	for i, t := range tasks {
		out[i] = TaskSummary{
			ID:        t.ID,
			Title:     t.Title,
			StartDate: t.StartDate.Format("2006-01-02"),
			EndDate:   t.EndDate.Format("2006-01-02"),
			Duration:  t.Duration,
		}
	}
	return out
}

const inferDepsPrompt = `You are an expert project planner. Given a list of scheduled tasks, infer dependency edges between them.

Rules:
- Only add a dependency when there is a strong causal reason.
- Prefer fewer edges. Do not add transitive or speculative dependencies.
- Do not create cycles.
- Only use task IDs from the provided list.
- A task cannot depend on itself.
- dependency_type is one of: finish-to-start, start-to-start, finish-to-finish, start-to-finish.
  Use finish-to-start unless the tasks clearly overlap.
- lag is a whole number of days (may be negative) and is usually 0.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"source": "<task that constrains>", "target": "<task that is constrained>", "dependency_type": "finish-to-start", "lag": 0, "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer task dependencies.
func (c *Client) InferDeps(ctx context.Context, tasks []TaskSummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}

	return ParseInferDeps(text)
}

// ParseInferDeps decodes a dependency inference response, tolerating
// markdown fences around the JSON.
func ParseInferDeps(text string) (*InferDepsResult, error) {
	text = stripJSONFences(text)

	var result InferDepsResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}
	return &result, nil
}

const explainSchedulePrompt = `You are a project manager explaining a task schedule to stakeholders.

You will receive a schedule report listing each task's earliest start, earliest finish,
latest finish and slack in days, followed by the critical path.

Produce a concise summary covering:
- Which tasks drive the end date and why.
- Tasks that are already late (negative slack) and by how much.
- Where there is room to absorb delays.

Keep it short: a few sentences per point. Do not repeat the table verbatim.
`

// ExplainSchedule sends a rendered schedule report to Claude and returns a
// plain-language explanation of it.
func (c *Client) ExplainSchedule(ctx context.Context, report string) (string, error) {
	var userContent strings.Builder
	userContent.WriteString("## Schedule Report\n\n```\n")
	userContent.WriteString(report)
	userContent.WriteString("\n```\n")

	text, err := c.complete(ctx, explainSchedulePrompt, userContent.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	// Remove ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		// Strip opening fence line
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
