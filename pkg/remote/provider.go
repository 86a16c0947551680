package remote

import (
	"context"
)

// Request carries everything a provider needs to act on a single resource.
// Properties contain only concrete values; the orchestrator substitutes
// deferred references before calling the provider.
type Request struct {
	Stack      string
	Resource   string
	Type       string
	Properties map[string]interface{}
}

// Result is what a provider reports back after a successful create or update.
// Outputs become available to dependent resources as ${{ id.attr }} values.
type Result struct {
	Outputs map[string]interface{}
}

// Provider executes resource operations against a remote system.
type Provider interface {
	Name() string
	Create(ctx context.Context, req Request) (*Result, error)
	Update(ctx context.Context, req Request) (*Result, error)
	Delete(ctx context.Context, req Request) error
}
