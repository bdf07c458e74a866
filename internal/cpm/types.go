package cpm

import "time"

// CPMResult holds the complete critical path analysis.
type CPMResult struct {
	Tasks         map[string]*TaskSchedule `json:"tasks"`
	CriticalPath  []string                 `json:"criticalPath"` // topological order
	ProjectStart  time.Time                `json:"projectStart"`
	ProjectFinish time.Time                `json:"projectFinish"`
	TotalDuration int                      `json:"totalDuration"` // days
	Waves         []Wave                   `json:"waves"`         // parallelizable groups
	TopoOrder     []string                 `json:"topoOrder"`
}

// TaskSchedule holds the scheduling info for a single task.
type TaskSchedule struct {
	TaskID     string    `json:"taskId"`
	ES         time.Time `json:"earliestStart"`
	EF         time.Time `json:"earliestFinish"`
	LS         time.Time `json:"latestStart"`
	LF         time.Time `json:"latestFinish"`
	Slack      int       `json:"slack"` // days
	IsCritical bool      `json:"isCritical"`
	Wave       int       `json:"wave"`
}

// Wave represents a group of tasks that share an earliest start date.
type Wave struct {
	Index      int       `json:"index"`
	Start      time.Time `json:"start"`
	TaskIDs    []string  `json:"taskIds"`
	IsCritical bool      `json:"isCritical"` // true if wave contains critical path tasks
}
