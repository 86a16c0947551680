package state

import (
	"time"

	"github.com/stackline-io/stackctl/pkg/plan"
)

// ResourceStatus tracks the deployment outcome of a single resource.
type ResourceStatus string

const (
	StatusDeployed ResourceStatus = "deployed"
	StatusFailed   ResourceStatus = "failed"
	StatusSkipped  ResourceStatus = "skipped"
)

// ResourceRecord is the persisted runtime state of one deployed resource.
type ResourceRecord struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Status     ResourceStatus         `json:"status"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Outputs    map[string]interface{} `json:"outputs,omitempty"`
	DependsOn  []string               `json:"depends_on,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// StackState is the persisted state of a stack. Serial increases by one on
// every successful save, so concurrent writers can detect divergence.
type StackState struct {
	Name        string           `json:"name"`
	Serial      int64            `json:"serial"`
	LastApplied *plan.Plan       `json:"last_applied,omitempty"`
	Resources   []ResourceRecord `json:"resources,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Resource returns the record with the given id, or nil.
func (s *StackState) Resource(id string) *ResourceRecord {
	for i := range s.Resources {
		if s.Resources[i].ID == id {
			return &s.Resources[i]
		}
	}
	return nil
}

// StackRef is a lightweight listing entry for a stack.
type StackRef struct {
	Name      string    `json:"name"`
	Serial    int64     `json:"serial"`
	Resources int       `json:"resources"`
	UpdatedAt time.Time `json:"updated_at"`
}
