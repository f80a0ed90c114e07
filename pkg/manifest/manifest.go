// Package manifest defines the job-level output summary written to
// manifest.json, per spec.md §6's schema.
package manifest

import "encoding/json"

// Status is the job-level outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Problem is one emitted problem image's manifest entry.
type Problem struct {
	Number int    `json:"number"`
	File   string `json:"file"`
	Source string `json:"source"` // "local" | "remote"
}

// Column is one column's manifest entry within a page.
type Column struct {
	Column   int       `json:"column"`
	Problems []Problem `json:"problems"`
	Missing  []int     `json:"missing"`
}

// Page is one page's manifest entry.
type Page struct {
	Page    int      `json:"page"`
	Columns []Column `json:"columns"`
}

// ErrorEntry is one error recorded against the job.
type ErrorEntry struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Manifest is the complete job summary written to manifest.json.
type Manifest struct {
	JobID  string       `json:"job_id"`
	Pages  []Page       `json:"pages"`
	Status Status       `json:"status"`
	Errors []ErrorEntry `json:"errors"`
}

// New constructs an empty manifest for a job, ready to accumulate pages
// and errors as the orchestrator processes them.
func New(jobID string) *Manifest {
	return &Manifest{JobID: jobID, Status: StatusOK, Errors: []ErrorEntry{}}
}

// AddError appends an error entry. It never changes Status —
// callers decide the job's final status once all pages are processed,
// since a recorded error (e.g. remote_unavailable for one column) does
// not by itself mean the whole job failed.
func (m *Manifest) AddError(kind, message string) {
	m.Errors = append(m.Errors, ErrorEntry{Kind: kind, Message: message})
}

// AddPage appends one page's manifest entry.
func (m *Manifest) AddPage(p Page) {
	m.Pages = append(m.Pages, p)
}

// Finalize computes the job-level Status from the accumulated pages: ok
// if no column has missing numbers, partial otherwise. Failed is never
// set here — pkg/orchestrator's failure path (failJob) sets StatusFailed
// directly, overriding any status Finalize computed.
func (m *Manifest) Finalize() {
	anyMissing := false
	for _, page := range m.Pages {
		for _, col := range page.Columns {
			if len(col.Missing) > 0 {
				anyMissing = true
			}
		}
	}
	if anyMissing {
		m.Status = StatusPartial
	} else {
		m.Status = StatusOK
	}
}

// MarshalIndent renders the manifest with stable 2-space indentation, the
// same pretty-printing convention the gdocai ToJSON helper this package's
// debug output is modeled after uses.
func (m *Manifest) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
