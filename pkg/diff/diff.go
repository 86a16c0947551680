package diff

import (
	"fmt"
	"sort"

	"github.com/stackline-io/stackctl/pkg/plan"
)

// Action describes what the orchestrator must do to a resource to move the
// deployed stack from one plan to another.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionModify Action = "modify"
	ActionNoop   Action = "noop"
)

// FieldDelta is a single property-level difference between two descriptions
// of the same resource.
type FieldDelta struct {
	Path     string      `json:"path"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// Change is one resource-level entry in a change set.
type Change struct {
	Action     Action                    `json:"action"`
	ResourceID string                    `json:"resource_id"`
	Type       string                    `json:"type"`
	Before     *plan.ResourceDescription `json:"before,omitempty"`
	After      *plan.ResourceDescription `json:"after,omitempty"`
	Deltas     []FieldDelta              `json:"deltas,omitempty"`
}

// ChangeSet is an ordered list of changes. Removals come first in reverse
// dependency order, then additions and modifications in dependency order, so
// applying the entries top to bottom is always safe.
type ChangeSet struct {
	Stack   string   `json:"stack"`
	Changes []Change `json:"changes"`
}

// Compare computes the change set that transforms prev into next. Either plan
// may be nil, meaning an empty stack on that side.
func Compare(prev, next *plan.Plan) *ChangeSet {
	cs := &ChangeSet{}
	if next != nil {
		cs.Stack = next.Stack
	} else if prev != nil {
		cs.Stack = prev.Stack
	}

	var nextIndex map[string]int
	if next != nil {
		nextIndex = next.Index()
	}

	// Resources absent from the next plan are torn down before anything is
	// created, walking the previous plan backwards so dependents go first.
	if prev != nil {
		for i := len(prev.Resources) - 1; i >= 0; i-- {
			before := &prev.Resources[i]
			if _, ok := nextIndex[before.ID]; ok {
				continue
			}
			cs.Changes = append(cs.Changes, Change{
				Action:     ActionRemove,
				ResourceID: before.ID,
				Type:       before.Type,
				Before:     before,
			})
		}
	}

	if next == nil {
		return cs
	}

	for i := range next.Resources {
		after := &next.Resources[i]
		var before *plan.ResourceDescription
		if prev != nil {
			before = prev.Resource(after.ID)
		}

		switch {
		case before == nil:
			cs.Changes = append(cs.Changes, Change{
				Action:     ActionAdd,
				ResourceID: after.ID,
				Type:       after.Type,
				After:      after,
			})
		case before.Equal(after):
			cs.Changes = append(cs.Changes, Change{
				Action:     ActionNoop,
				ResourceID: after.ID,
				Type:       after.Type,
				Before:     before,
				After:      after,
			})
		default:
			cs.Changes = append(cs.Changes, Change{
				Action:     ActionModify,
				ResourceID: after.ID,
				Type:       after.Type,
				Before:     before,
				After:      after,
				Deltas:     fieldDeltas(before, after),
			})
		}
	}

	return cs
}

func fieldDeltas(before, after *plan.ResourceDescription) []FieldDelta {
	var deltas []FieldDelta

	if before.Type != after.Type {
		deltas = append(deltas, FieldDelta{
			Path:     "type",
			OldValue: before.Type,
			NewValue: after.Type,
		})
	}

	for _, key := range sortedPropertyKeys(before, after) {
		oldValue, inBefore := before.Properties[key]
		newValue, inAfter := after.Properties[key]
		path := fmt.Sprintf("properties.%s", key)
		switch {
		case !inBefore:
			deltas = append(deltas, FieldDelta{Path: path, NewValue: newValue})
		case !inAfter:
			deltas = append(deltas, FieldDelta{Path: path, OldValue: oldValue})
		case !oldValue.Equal(newValue):
			deltas = append(deltas, FieldDelta{Path: path, OldValue: oldValue, NewValue: newValue})
		}
	}

	if !stringSlicesEqual(before.DependsOn, after.DependsOn) {
		deltas = append(deltas, FieldDelta{
			Path:     "depends_on",
			OldValue: before.DependsOn,
			NewValue: after.DependsOn,
		})
	}

	return deltas
}

func sortedPropertyKeys(before, after *plan.ResourceDescription) []string {
	seen := make(map[string]struct{}, len(before.Properties)+len(after.Properties))
	var keys []string
	for key := range before.Properties {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range after.Properties {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Summary tallies a change set by action.
type Summary struct {
	Add    int `json:"add"`
	Remove int `json:"remove"`
	Modify int `json:"modify"`
	Noop   int `json:"noop"`
}

// Summarize counts the changes by action.
func (cs *ChangeSet) Summarize() Summary {
	var s Summary
	for _, change := range cs.Changes {
		switch change.Action {
		case ActionAdd:
			s.Add++
		case ActionRemove:
			s.Remove++
		case ActionModify:
			s.Modify++
		case ActionNoop:
			s.Noop++
		}
	}
	return s
}

// IsEmpty reports whether the change set contains no actionable changes.
func (cs *ChangeSet) IsEmpty() bool {
	for _, change := range cs.Changes {
		if change.Action != ActionNoop {
			return false
		}
	}
	return true
}
