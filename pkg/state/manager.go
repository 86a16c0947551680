// Package state persists stack state and plans through pluggable backends.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	stackerrors "github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/state/backend"
)

// Manager provides high-level persistence for stacks and their plans.
type Manager interface {
	GetStack(ctx context.Context, name string) (*StackState, error)
	SaveStack(ctx context.Context, state *StackState) error
	DeleteStack(ctx context.Context, name string) error
	ListStacks(ctx context.Context) ([]StackRef, error)

	GetPlan(ctx context.Context, stack, id string) (*plan.Plan, error)
	SavePlan(ctx context.Context, p *plan.Plan) error
	ListPlans(ctx context.Context, stack string) ([]string, error)

	Lock(ctx context.Context, scope LockScope) (backend.Lock, error)

	Backend() backend.Backend
}

// LockScope identifies the stack being locked and why.
type LockScope struct {
	Stack     string
	Operation string
	Who       string
}

type manager struct {
	backend backend.Backend
}

// NewManager creates a state manager over the given backend.
func NewManager(b backend.Backend) Manager {
	return &manager{backend: b}
}

// NewManagerFromConfig instantiates the configured backend and wraps it.
func NewManagerFromConfig(config backend.Config) (Manager, error) {
	b, err := backend.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	return NewManager(b), nil
}

func (m *manager) Backend() backend.Backend {
	return m.backend
}

func (m *manager) GetStack(ctx context.Context, name string) (*StackState, error) {
	s, err := readJSON[StackState](ctx, m.backend, stackPath(name))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, stackerrors.NotFoundError("stack", name)
	}
	return s, err
}

// SaveStack bumps the serial and updated timestamp before writing.
func (m *manager) SaveStack(ctx context.Context, state *StackState) error {
	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	state.Serial++
	return writeJSON(ctx, m.backend, stackPath(state.Name), state)
}

func (m *manager) DeleteStack(ctx context.Context, name string) error {
	paths, err := m.backend.List(ctx, path.Join("stacks", name))
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := m.backend.Delete(ctx, p); err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

func (m *manager) ListStacks(ctx context.Context) ([]StackRef, error) {
	paths, err := m.backend.List(ctx, "stacks/")
	if err != nil {
		return nil, err
	}

	names := map[string]bool{}
	for _, p := range paths {
		// Path format: stacks/<name>/stack.state.json or stacks/<name>/plans/<id>.json
		parts := strings.Split(p, "/")
		if len(parts) >= 2 {
			names[parts[1]] = true
		}
	}

	refs := make([]StackRef, 0, len(names))
	for name := range names {
		s, err := m.GetStack(ctx, name)
		if err != nil {
			continue
		}
		refs = append(refs, StackRef{
			Name:      s.Name,
			Serial:    s.Serial,
			Resources: len(s.Resources),
			UpdatedAt: s.UpdatedAt,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (m *manager) GetPlan(ctx context.Context, stack, id string) (*plan.Plan, error) {
	p, err := readJSON[plan.Plan](ctx, m.backend, planPath(stack, id))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, stackerrors.NotFoundError("plan", id)
	}
	return p, err
}

func (m *manager) SavePlan(ctx context.Context, p *plan.Plan) error {
	return writeJSON(ctx, m.backend, planPath(p.Stack, p.ID), p)
}

func (m *manager) ListPlans(ctx context.Context, stack string) ([]string, error) {
	prefix := path.Join("stacks", stack, "plans") + "/"
	paths, err := m.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *manager) Lock(ctx context.Context, scope LockScope) (backend.Lock, error) {
	info := backend.LockInfo{
		Who:       scope.Who,
		Operation: scope.Operation,
	}
	return m.backend.Lock(ctx, path.Join("stacks", scope.Stack), info)
}

func stackPath(name string) string {
	return path.Join("stacks", name, "stack.state.json")
}

func planPath(stack, id string) string {
	return path.Join("stacks", stack, "plans", id+".json")
}

func readJSON[T any](ctx context.Context, b backend.Backend, p string) (*T, error) {
	reader, err := b.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var result T
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p, err)
	}
	return &result, nil
}

func writeJSON(ctx context.Context, b backend.Backend, p string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p, err)
	}
	return b.Write(ctx, p, bytes.NewReader(content))
}
