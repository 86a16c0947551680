// Package memory provides an in-process provider used for local development
// and testing. Resources live only for the lifetime of the process.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/remote"
)

func init() {
	remote.Register(New())
}

type record struct {
	uid        string
	kind       string
	properties map[string]interface{}
}

// Provider stores resource state in memory, keyed by stack and resource id.
type Provider struct {
	mu      sync.Mutex
	records map[string]record
}

func New() *Provider {
	return &Provider{records: map[string]record{}}
}

func (p *Provider) Name() string {
	return "memory"
}

func key(req remote.Request) string {
	return req.Stack + "/" + req.Resource
}

func (p *Provider) Create(ctx context.Context, req remote.Request) (*remote.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key(req)
	if _, exists := p.records[k]; exists {
		return nil, errors.New(errors.ErrCodeProvider, "resource already exists: "+req.Resource)
	}

	rec := record{
		uid:        uuid.New().String(),
		kind:       req.Type,
		properties: req.Properties,
	}
	p.records[k] = rec
	return p.result(rec), nil
}

func (p *Provider) Update(ctx context.Context, req remote.Request) (*remote.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key(req)
	rec, exists := p.records[k]
	if !exists {
		return nil, errors.New(errors.ErrCodeProvider, "resource not found: "+req.Resource)
	}

	rec.kind = req.Type
	rec.properties = req.Properties
	p.records[k] = rec
	return p.result(rec), nil
}

func (p *Provider) Delete(ctx context.Context, req remote.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key(req)
	if _, exists := p.records[k]; !exists {
		return errors.New(errors.ErrCodeProvider, "resource not found: "+req.Resource)
	}
	delete(p.records, k)
	return nil
}

// Len reports the number of live resources across all stacks.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func (p *Provider) result(rec record) *remote.Result {
	outputs := make(map[string]interface{}, len(rec.properties)+1)
	for name, value := range rec.properties {
		outputs[name] = value
	}
	outputs["id"] = rec.uid
	return &remote.Result{Outputs: outputs}
}
