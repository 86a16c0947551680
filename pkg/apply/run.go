package apply

import (
	"context"
	"sort"
	"time"

	"github.com/stackline-io/stackctl/pkg/diff"
	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/remote"
	"github.com/stackline-io/stackctl/pkg/state"
)

// run holds the mutable state of one orchestrator execution. All bookkeeping
// happens on the scheduler goroutine; workers only report completions over a
// channel.
type run struct {
	o       *Orchestrator
	next    *plan.Plan
	result  *Result
	status  map[string]Status
	outputs map[string]map[string]interface{}
	working map[string]state.ResourceRecord

	removals []diff.Change
	updates  []diff.Change
}

type completion struct {
	entry   EntryResult
	outputs map[string]interface{}
	record  *state.ResourceRecord
}

func (o *Orchestrator) newRun(current *state.StackState, next *plan.Plan, cs *diff.ChangeSet) *run {
	r := &run{
		o:       o,
		next:    next,
		result:  &Result{Stack: next.Stack, PlanID: next.ID},
		status:  map[string]Status{},
		outputs: map[string]map[string]interface{}{},
		working: map[string]state.ResourceRecord{},
	}

	for _, rec := range current.Resources {
		r.working[rec.ID] = rec
		if rec.Outputs != nil {
			r.outputs[rec.ID] = rec.Outputs
		}
	}

	var removals, updates []diff.Change
	for _, change := range cs.Changes {
		switch change.Action {
		case diff.ActionRemove:
			removals = append(removals, change)
			r.status[change.ResourceID] = StatusPending
		case diff.ActionAdd, diff.ActionModify:
			updates = append(updates, change)
			r.status[change.ResourceID] = StatusPending
		}
	}
	r.removals = removals
	r.updates = updates
	return r
}

// execute runs the removal phase to completion, then the update phase.
// Removals of dependents gate removals of their dependencies; creations and
// updates are gated by the resources they depend on.
func (r *run) execute(ctx context.Context) {
	r.phase(ctx, r.removals, r.removalDeps())
	r.phase(ctx, r.updates, r.updateDeps())
}

// removalDeps inverts the dependency edges of the removed resources: a
// resource may only be torn down after everything that depended on it.
func (r *run) removalDeps() map[string][]string {
	removed := map[string]bool{}
	for _, change := range r.removals {
		removed[change.ResourceID] = true
	}

	deps := map[string][]string{}
	for _, change := range r.removals {
		for _, dep := range change.Before.DependsOn {
			if removed[dep] {
				deps[dep] = append(deps[dep], change.ResourceID)
			}
		}
	}
	return deps
}

// updateDeps gates each creation or update on its dependencies that are also
// being changed in this run. Unchanged dependencies are already satisfied.
func (r *run) updateDeps() map[string][]string {
	changing := map[string]bool{}
	for _, change := range r.updates {
		changing[change.ResourceID] = true
	}

	deps := map[string][]string{}
	for _, change := range r.updates {
		for _, dep := range change.After.DependsOn {
			if changing[dep] {
				deps[change.ResourceID] = append(deps[change.ResourceID], dep)
			}
		}
	}
	return deps
}

type readiness int

const (
	blocked readiness = iota
	ready
	depFailed
)

func (r *run) readiness(id string, deps map[string][]string) readiness {
	for _, dep := range deps[id] {
		switch r.status[dep] {
		case StatusSucceeded:
		case StatusFailed, StatusSkipped:
			return depFailed
		default:
			return blocked
		}
	}
	return ready
}

func (r *run) phase(ctx context.Context, changes []diff.Change, deps map[string][]string) {
	if len(changes) == 0 {
		return
	}

	pending := append([]diff.Change{}, changes...)
	done := make(chan completion)
	inflight := 0
	cancelled := false

	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			r.result.Cancelled = true
		}

		if cancelled {
			for _, change := range pending {
				r.finish(EntryResult{
					ResourceID: change.ResourceID,
					Action:     change.Action,
					Status:     StatusSkipped,
					Error:      "run cancelled",
				})
			}
			pending = nil
		} else {
			progressed := false
			var waiting []diff.Change
			for _, change := range pending {
				switch r.readiness(change.ResourceID, deps) {
				case depFailed:
					r.finish(EntryResult{
						ResourceID: change.ResourceID,
						Action:     change.Action,
						Status:     StatusSkipped,
						Error:      "dependency was not deployed",
					})
					progressed = true
				case ready:
					if inflight < r.o.parallelism {
						if r.launch(ctx, change, done) {
							inflight++
						}
						progressed = true
					} else {
						waiting = append(waiting, change)
					}
				default:
					waiting = append(waiting, change)
				}
			}
			pending = waiting

			if inflight == 0 && len(pending) > 0 && !progressed {
				for _, change := range pending {
					r.finish(EntryResult{
						ResourceID: change.ResourceID,
						Action:     change.Action,
						Status:     StatusSkipped,
						Error:      "dependency was not deployed",
					})
				}
				pending = nil
			}
		}

		if inflight == 0 {
			if len(pending) == 0 {
				return
			}
			continue
		}

		comp := <-done
		inflight--
		r.finish(comp.entry)
		if comp.outputs != nil {
			r.outputs[comp.entry.ResourceID] = comp.outputs
		}
		if comp.entry.Status == StatusSucceeded {
			if comp.entry.Action == diff.ActionRemove {
				delete(r.working, comp.entry.ResourceID)
			} else if comp.record != nil {
				r.working[comp.record.ID] = *comp.record
			}
		}
	}
}

// launch resolves the entry's inputs and starts a worker. Returns false when
// the entry failed before a worker was needed.
func (r *run) launch(ctx context.Context, change diff.Change, done chan completion) bool {
	r.status[change.ResourceID] = StatusRunning

	var properties map[string]interface{}
	if change.Action != diff.ActionRemove {
		resolved, err := resolveProperties(change.After, r.outputs)
		if err != nil {
			r.finish(EntryResult{
				ResourceID: change.ResourceID,
				Action:     change.Action,
				Status:     StatusFailed,
				Error:      err.Error(),
			})
			return false
		}
		properties = resolved
	}

	r.o.log.Info().
		Str("stack", r.next.Stack).
		Str("resource", change.ResourceID).
		Str("action", string(change.Action)).
		Msg("executing change")

	go r.worker(ctx, change, properties, done)
	return true
}

func (r *run) worker(ctx context.Context, change diff.Change, properties map[string]interface{}, done chan completion) {
	start := time.Now()
	entry := EntryResult{
		ResourceID: change.ResourceID,
		Action:     change.Action,
	}

	outputs, record, err := r.dispatch(ctx, change, properties)
	entry.Duration = time.Since(start)
	if err != nil {
		entry.Status = StatusFailed
		entry.Error = err.Error()
		done <- completion{entry: entry}
		return
	}

	entry.Status = StatusSucceeded
	done <- completion{entry: entry, outputs: outputs, record: record}
}

func (r *run) dispatch(ctx context.Context, change diff.Change, properties map[string]interface{}) (map[string]interface{}, *state.ResourceRecord, error) {
	req := remote.Request{
		Stack:      r.next.Stack,
		Resource:   change.ResourceID,
		Type:       change.Type,
		Properties: properties,
	}

	switch change.Action {
	case diff.ActionRemove:
		if err := r.o.provider.Delete(ctx, req); err != nil {
			return nil, nil, errors.RemoteOperationFailed(change.ResourceID, "delete", err)
		}
		return nil, nil, nil

	case diff.ActionAdd, diff.ActionModify:
		var res *remote.Result
		var err error
		operation := "update"
		if change.Action == diff.ActionAdd {
			operation = "create"
			res, err = r.o.provider.Create(ctx, req)
		} else {
			res, err = r.o.provider.Update(ctx, req)
		}
		if err != nil {
			return nil, nil, errors.RemoteOperationFailed(change.ResourceID, operation, err)
		}

		now := time.Now().UTC()
		record := &state.ResourceRecord{
			ID:         change.ResourceID,
			Type:       change.Type,
			Status:     state.StatusDeployed,
			Properties: properties,
			Outputs:    res.Outputs,
			DependsOn:  change.After.DependsOn,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if prev, ok := r.working[change.ResourceID]; ok {
			record.CreatedAt = prev.CreatedAt
		}
		return res.Outputs, record, nil
	}
	return nil, nil, nil
}

func (r *run) finish(entry EntryResult) {
	r.status[entry.ResourceID] = entry.Status
	r.result.record(entry)

	event := r.o.log.Info()
	if entry.Status == StatusFailed {
		event = r.o.log.Error()
	}
	event.
		Str("stack", r.next.Stack).
		Str("resource", entry.ResourceID).
		Str("action", string(entry.Action)).
		Str("status", string(entry.Status)).
		Msg("change finished")
}

// records returns the post-run resource records sorted by id.
func (r *run) records() []state.ResourceRecord {
	out := make([]state.ResourceRecord, 0, len(r.working))
	for _, rec := range r.working {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
