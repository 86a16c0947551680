// Package stack parses stack configuration files: the resources a stack
// declares, their properties and their dependencies.
package stack

import (
	"github.com/stackline-io/stackctl/pkg/graph"
)

// Stack is a parsed stack configuration.
type Stack struct {
	Name      string
	Variables []Variable
	Resources []Resource
}

// Variable is an input variable declaration.
type Variable struct {
	Name        string
	Type        string
	Description string
	Default     interface{}
	Sensitive   bool
}

// Resource is one declared resource. Property values may contain
// ${{ id.attr }} reference tokens.
type Resource struct {
	Type       string
	ID         string
	Properties map[string]interface{}
	DependsOn  []string
}

// Declarations converts the parsed resources into graph builder input.
func (s *Stack) Declarations() []graph.Declaration {
	decls := make([]graph.Declaration, 0, len(s.Resources))
	for _, r := range s.Resources {
		decls = append(decls, graph.Declaration{
			ID:         r.ID,
			Type:       r.Type,
			Properties: r.Properties,
			DependsOn:  r.DependsOn,
		})
	}
	return decls
}

// Graph builds the dependency graph for the stack.
func (s *Stack) Graph() (*graph.Graph, error) {
	b := graph.NewBuilder()
	for _, decl := range s.Declarations() {
		if err := b.Add(decl); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
