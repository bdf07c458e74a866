// Package state keeps a history of schedule analyses so slippage between
// runs over the same workflow can be reported.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const stateDir = ".taskflow"
const stateFile = "history.json"

// maxEntries bounds the history file; the oldest entries are dropped first.
const maxEntries = 500

// RunStatus summarises a recorded validation outcome.
type RunStatus string

const (
	StatusValid    RunStatus = "valid"
	StatusWarnings RunStatus = "warnings"
	StatusInvalid  RunStatus = "invalid"
)

// Entry is one recorded analysis.
type Entry struct {
	ReportID      string     `json:"report_id"`
	Source        string     `json:"source"`
	RecordedAt    time.Time  `json:"recorded_at"`
	Status        RunStatus  `json:"status"`
	Warnings      int        `json:"warnings"`
	Tasks         int        `json:"tasks"`
	CriticalPath  []string   `json:"critical_path"`
	ProjectFinish *time.Time `json:"project_finish,omitempty"`
	TotalDuration int        `json:"total_duration"` // days
}

// History is the persistent list of recorded analyses, oldest first.
type History struct {
	Entries []*Entry `json:"entries"`

	mu   sync.Mutex
	path string
}

// Open loads the history under dir, or under ./.taskflow when dir is empty.
// A missing file yields an empty history.
func Open(dir string) (*History, error) {
	if dir == "" {
		dir = stateDir
	}
	h := &History{path: filepath.Join(dir, stateFile)}

	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, errors.Wrapf(err, "parse history %s", h.path)
	}
	return h, nil
}

// Path returns the file the history is saved to.
func (h *History) Path() string {
	return h.path
}

// Save persists the history to disk.
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return errors.Wrap(err, "create state dir")
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal history")
	}
	return errors.Wrap(os.WriteFile(h.path, data, 0644), "write history")
}

// Record appends e and saves. It returns the previous entry for the same
// source, or nil if this is the first.
func (h *History) Record(e *Entry) (*Entry, error) {
	h.mu.Lock()
	prev := h.latestLocked(e.Source)
	h.Entries = append(h.Entries, e)
	if len(h.Entries) > maxEntries {
		h.Entries = h.Entries[len(h.Entries)-maxEntries:]
	}
	h.mu.Unlock()

	return prev, h.Save()
}

func (h *History) latestLocked(source string) *Entry {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if h.Entries[i].Source == source {
			return h.Entries[i]
		}
	}
	return nil
}

// ForSource returns the entries for source, oldest first. An empty source
// returns every entry.
func (h *History) ForSource(source string) []*Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Entry
	for _, e := range h.Entries {
		if source == "" || e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// Slip returns how many days later cur finishes than prev. It is negative
// when the project got shorter and zero when either finish is unknown.
func Slip(prev, cur *Entry) int {
	if prev == nil || cur == nil || prev.ProjectFinish == nil || cur.ProjectFinish == nil {
		return 0
	}
	return int(cur.ProjectFinish.Sub(*prev.ProjectFinish).Hours() / 24)
}

// Clean removes the history file under dir.
func Clean(dir string) error {
	if dir == "" {
		dir = stateDir
	}
	err := os.Remove(filepath.Join(dir, stateFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
