package graph

import (
	"sort"

	"github.com/stackline-io/stackctl/pkg/errors"
)

// Graph is a directed acyclic dependency graph of resources.
type Graph struct {
	// All nodes in the graph, keyed by identifier
	Nodes map[string]*Node

	// order holds node IDs in declaration order
	order []string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
	}
}

// AddNode adds a node to the graph. The node's identifier must be unique.
func (g *Graph) AddNode(node *Node) error {
	if _, exists := g.Nodes[node.ID]; exists {
		return errors.DuplicateIdentifier(node.ID)
	}
	node.index = len(g.order)
	g.Nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// GetNode returns a node by ID, or nil if absent.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// DeclarationOrder returns node IDs in the order they were declared.
func (g *Graph) DeclarationOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// AddEdge adds a dependency edge from dependent to dependency.
func (g *Graph) AddEdge(dependentID, dependencyID string) error {
	dependent := g.GetNode(dependentID)
	if dependent == nil {
		return errors.UnresolvedReference(dependentID, dependentID)
	}

	dependency := g.GetNode(dependencyID)
	if dependency == nil {
		return errors.UnresolvedReference(dependentID, dependencyID)
	}

	dependent.AddDependency(dependencyID)
	dependency.AddDependent(dependentID)

	return nil
}

// TopologicalSort returns nodes in dependency order (dependencies first).
// Ties among nodes with no remaining dependency are broken by declaration
// order, so output is deterministic for a given declaration sequence.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	// Kahn's algorithm
	inDegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = len(node.DependsOn)
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	byIndex := func(queue []string) {
		sort.Slice(queue, func(i, j int) bool {
			return g.Nodes[queue[i]].index < g.Nodes[queue[j]].index
		})
	}

	var result []*Node
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		node := g.Nodes[nodeID]
		result = append(result, node)

		for _, dependentID := range node.DependedOnBy {
			inDegree[dependentID]--
			if inDegree[dependentID] == 0 {
				queue = append(queue, dependentID)
				byIndex(queue)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		cycle := g.FindCycle()
		return nil, errors.CyclicDependency(cycle)
	}

	return result, nil
}

// ReverseTopologicalSort returns nodes in reverse dependency order
// (dependents first).
func (g *Graph) ReverseTopologicalSort() ([]*Node, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}

	return sorted, nil
}

// FindCycle returns one dependency cycle as an ordered sequence of node IDs,
// where each entry depends on the next and the last depends on the first.
// Returns nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS path
		black = 2 // fully explored
	)

	color := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)

		// Walk dependencies in a stable order so the reported cycle is
		// deterministic.
		deps := append([]string(nil), g.Nodes[id].DependsOn...)
		sort.Strings(deps)

		for _, depID := range deps {
			if _, exists := g.Nodes[depID]; !exists {
				continue
			}
			switch color[depID] {
			case grey:
				// Found a back edge: slice the stack from depID onward.
				for i, candidate := range stack {
					if candidate == depID {
						cycle = append([]string(nil), stack[i:]...)
						return true
					}
				}
			case white:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}

	return nil
}
