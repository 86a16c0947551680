// Package apply executes change sets against a provider, walking the
// dependency graph with bounded parallelism and recording the outcome in the
// state backend.
package apply

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stackline-io/stackctl/pkg/diff"
	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/remote"
	"github.com/stackline-io/stackctl/pkg/state"
)

// DefaultParallelism bounds concurrent provider calls when no explicit limit
// is configured.
const DefaultParallelism = 10

// Options tune an orchestrator.
type Options struct {
	Parallelism int
	Who         string
	Logger      zerolog.Logger
}

// Orchestrator deploys plans. It is safe to reuse across runs.
type Orchestrator struct {
	manager     state.Manager
	provider    remote.Provider
	log         zerolog.Logger
	parallelism int
	who         string
}

func New(manager state.Manager, provider remote.Provider, opts Options) *Orchestrator {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Orchestrator{
		manager:     manager,
		provider:    provider,
		log:         opts.Logger,
		parallelism: parallelism,
		who:         opts.Who,
	}
}

// Apply moves the stack to the desired plan. The stack is locked for the
// duration of the run. Resource-level failures do not abort the run; they
// skip dependents and are reported in the result.
func (o *Orchestrator) Apply(ctx context.Context, next *plan.Plan) (*Result, error) {
	lock, err := o.manager.Lock(ctx, state.LockScope{
		Stack:     next.Stack,
		Operation: "apply",
		Who:       o.who,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLocked, "failed to lock stack "+next.Stack, err)
	}
	defer lock.Unlock(context.Background())

	current, err := o.manager.GetStack(ctx, next.Stack)
	if err != nil {
		if !errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		current = &state.StackState{Name: next.Stack}
	}

	cs := diff.Compare(current.LastApplied, next)
	r := o.newRun(current, next, cs)
	r.execute(ctx)

	if err := o.persist(ctx, current, next, r); err != nil {
		return r.result, err
	}
	return r.result, nil
}

// Destroy removes every resource in the stack by applying an empty plan.
func (o *Orchestrator) Destroy(ctx context.Context, stack string) (*Result, error) {
	empty := plan.New(stack)
	return o.Apply(ctx, empty)
}

// persist writes the post-run stack state and the plan record. Only entries
// that succeeded are reflected; resources whose change failed keep their
// previous description so the next diff sees them as still outstanding.
func (o *Orchestrator) persist(ctx context.Context, current *state.StackState, next *plan.Plan, r *run) error {
	applied := &plan.Plan{
		ID:        next.ID,
		Stack:     next.Stack,
		CreatedAt: next.CreatedAt,
	}

	for i := range next.Resources {
		desc := next.Resources[i]
		switch r.status[desc.ID] {
		case StatusSucceeded, "":
			// Unchanged resources carry no run status.
			applied.Resources = append(applied.Resources, desc)
		default:
			if current.LastApplied != nil {
				if prev := current.LastApplied.Resource(desc.ID); prev != nil {
					applied.Resources = append(applied.Resources, *prev)
				}
			}
		}
	}

	// Removals that failed leave the resource deployed in its old form.
	if current.LastApplied != nil {
		for i := range current.LastApplied.Resources {
			desc := current.LastApplied.Resources[i]
			if next.Resource(desc.ID) != nil {
				continue
			}
			if r.status[desc.ID] != StatusSucceeded {
				applied.Resources = append(applied.Resources, desc)
			}
		}
	}

	current.LastApplied = applied
	current.Resources = r.records()

	if err := o.manager.SaveStack(ctx, current); err != nil {
		return err
	}
	return o.manager.SavePlan(ctx, next)
}
