// Package graph provides dependency graph construction and traversal for stackctl.
package graph

// Node represents a declared resource in the dependency graph.
type Node struct {
	// Unique identifier within the graph
	ID string

	// Type tag of the resource (e.g. "network", "cluster", "service")
	Type string

	// Declared property values. String values may embed ${{ id.attr }}
	// reference tokens that are resolved during synthesis.
	Properties map[string]interface{}

	// Dependencies - IDs of nodes this node depends on
	DependsOn []string

	// Dependents - IDs of nodes that depend on this node
	DependedOnBy []string

	// index is the declaration position, used to break topological ties
	// deterministically.
	index int
}

// NewNode creates a new graph node.
func NewNode(id, resourceType string) *Node {
	return &Node{
		ID:           id,
		Type:         resourceType,
		Properties:   make(map[string]interface{}),
		DependsOn:    []string{},
		DependedOnBy: []string{},
	}
}

// SetProperty sets a property value.
func (n *Node) SetProperty(key string, value interface{}) {
	n.Properties[key] = value
}

// AddDependency adds a dependency to this node.
func (n *Node) AddDependency(nodeID string) {
	for _, dep := range n.DependsOn {
		if dep == nodeID {
			return // Already exists
		}
	}
	n.DependsOn = append(n.DependsOn, nodeID)
}

// AddDependent adds a dependent to this node.
func (n *Node) AddDependent(nodeID string) {
	for _, dep := range n.DependedOnBy {
		if dep == nodeID {
			return // Already exists
		}
	}
	n.DependedOnBy = append(n.DependedOnBy, nodeID)
}

// Index returns the declaration position of this node.
func (n *Node) Index() int {
	return n.index
}
