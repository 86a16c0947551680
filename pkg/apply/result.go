package apply

import (
	"time"

	"github.com/stackline-io/stackctl/pkg/diff"
)

// Status is the lifecycle state of one change-set entry during a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// EntryResult records the outcome of a single change-set entry.
type EntryResult struct {
	ResourceID string        `json:"resource_id"`
	Action     diff.Action   `json:"action"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Result summarizes an orchestrator run. Entries appear in completion order.
type Result struct {
	Stack     string        `json:"stack"`
	PlanID    string        `json:"plan_id"`
	Entries   []EntryResult `json:"entries"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// HasFailures reports whether any entry failed or was skipped.
func (r *Result) HasFailures() bool {
	return r.Failed > 0 || r.Skipped > 0
}

func (r *Result) record(entry EntryResult) {
	r.Entries = append(r.Entries, entry)
	switch entry.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// Entry returns the recorded result for a resource, or nil.
func (r *Result) Entry(resourceID string) *EntryResult {
	for i := range r.Entries {
		if r.Entries[i].ResourceID == resourceID {
			return &r.Entries[i]
		}
	}
	return nil
}
