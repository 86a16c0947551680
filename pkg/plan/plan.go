package plan

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResourceDescription is one planned resource. Entries appear in the plan in
// dependency order, so position in Plan.Resources doubles as a safe
// deployment order.
type ResourceDescription struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
	DependsOn  []string                 `json:"depends_on,omitempty"`
}

// Equal reports whether two descriptions would produce the same resource.
func (r *ResourceDescription) Equal(other *ResourceDescription) bool {
	if r.ID != other.ID || r.Type != other.Type {
		return false
	}
	if len(r.DependsOn) != len(other.DependsOn) {
		return false
	}
	for i, dep := range r.DependsOn {
		if other.DependsOn[i] != dep {
			return false
		}
	}
	if len(r.Properties) != len(other.Properties) {
		return false
	}
	for key, value := range r.Properties {
		otherValue, ok := other.Properties[key]
		if !ok || !value.Equal(otherValue) {
			return false
		}
	}
	return true
}

// Plan is a synthesized deployment plan for a stack.
type Plan struct {
	ID        string                `json:"id"`
	Stack     string                `json:"stack"`
	CreatedAt time.Time             `json:"created_at"`
	Resources []ResourceDescription `json:"resources"`
}

// New creates an empty plan for the named stack with a fresh identifier.
func New(stack string) *Plan {
	return &Plan{
		ID:        uuid.New().String(),
		Stack:     stack,
		CreatedAt: time.Now().UTC(),
	}
}

// Resource returns the description with the given id, or nil.
func (p *Plan) Resource(id string) *ResourceDescription {
	for i := range p.Resources {
		if p.Resources[i].ID == id {
			return &p.Resources[i]
		}
	}
	return nil
}

// Index returns the zero-based position of each resource in the plan.
func (p *Plan) Index() map[string]int {
	index := make(map[string]int, len(p.Resources))
	for i := range p.Resources {
		index[p.Resources[i].ID] = i
	}
	return index
}

// IsEmpty reports whether the plan declares no resources.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Resources) == 0
}

// MarshalIndent renders the plan as stable, human-readable JSON.
func (p *Plan) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Unmarshal parses a plan previously written with MarshalIndent.
func Unmarshal(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
