package graph

import (
	"github.com/stackline-io/stackctl/pkg/errors"
)

// Declaration is a single resource declaration as produced by the host API
// (for the CLI, the stack config parser).
type Declaration struct {
	// ID is the resource identifier, unique within the stack.
	ID string

	// Type is the resource type tag.
	Type string

	// Properties are the declared property values. String values may embed
	// ${{ id.attr }} reference tokens.
	Properties map[string]interface{}

	// DependsOn lists explicit dependencies by identifier.
	DependsOn []string
}

// Builder assembles resource declarations into a dependency graph.
type Builder struct {
	graph *Graph
	decls []Declaration
}

// NewBuilder creates a new graph builder.
func NewBuilder() *Builder {
	return &Builder{
		graph: NewGraph(),
	}
}

// Add registers a resource declaration. Registration fails immediately when
// the identifier is already taken; reference resolution and the cycle check
// are deferred to Build so declarations may arrive in any order.
func (b *Builder) Add(decl Declaration) error {
	node := NewNode(decl.ID, decl.Type)
	for key, value := range decl.Properties {
		node.SetProperty(key, value)
	}
	if err := b.graph.AddNode(node); err != nil {
		return err
	}
	b.decls = append(b.decls, decl)
	return nil
}

// Build resolves all references, verifies the graph is acyclic, and returns
// the completed DAG. The returned graph must not be mutated.
func (b *Builder) Build() (*Graph, error) {
	// Explicit depends_on references. A missing target is a declaration
	// error: the author named a resource that does not exist.
	for _, decl := range b.decls {
		for _, depID := range decl.DependsOn {
			if b.graph.GetNode(depID) == nil {
				return nil, errors.UnresolvedReference(decl.ID, depID)
			}
			if err := b.graph.AddEdge(decl.ID, depID); err != nil {
				return nil, err
			}
		}
	}

	// Implicit references from ${{ id.attr }} tokens in property values.
	// Edges are added only for targets present in the graph; a dangling
	// token is reported by the synthesizer as an unresolvable property.
	for _, decl := range b.decls {
		node := b.graph.GetNode(decl.ID)
		for _, value := range node.Properties {
			for _, token := range PropertyTokens(value) {
				if token.Resource == decl.ID {
					continue
				}
				if b.graph.GetNode(token.Resource) == nil {
					continue
				}
				if err := b.graph.AddEdge(decl.ID, token.Resource); err != nil {
					return nil, err
				}
			}
		}
	}

	if cycle := b.graph.FindCycle(); cycle != nil {
		return nil, errors.CyclicDependency(cycle)
	}

	return b.graph, nil
}
