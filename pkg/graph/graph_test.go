package graph

import (
	"testing"

	"github.com/stackline-io/stackctl/pkg/errors"
)

func TestAddNodeDuplicate(t *testing.T) {
	g := NewGraph()

	if err := g.AddNode(NewNode("X", "network")); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	err := g.AddNode(NewNode("X", "cluster"))
	if err == nil {
		t.Fatal("expected error for duplicate identifier")
	}
	if !errors.Is(err, errors.ErrCodeDuplicateIdentifier) {
		t.Errorf("error code: got %v, want DUPLICATE_IDENTIFIER", err)
	}
}

func TestAddEdgeUnknownNode(t *testing.T) {
	g := NewGraph()
	_ = g.AddNode(NewNode("a", "network"))

	if err := g.AddEdge("a", "missing"); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if err := g.AddEdge("missing", "a"); err == nil {
		t.Fatal("expected error for unknown dependent")
	}
}

func TestTopologicalSortOrder(t *testing.T) {
	g := NewGraph()

	// Declared in reverse dependency order on purpose.
	_ = g.AddNode(NewNode("service", "service"))
	_ = g.AddNode(NewNode("cluster", "cluster"))
	_ = g.AddNode(NewNode("vpc", "network"))

	_ = g.AddEdge("service", "cluster")
	_ = g.AddEdge("cluster", "vpc")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}

	position := make(map[string]int)
	for i, node := range sorted {
		position[node.ID] = i
	}

	// Every dependency must appear before its dependents.
	for _, node := range sorted {
		for _, depID := range node.DependsOn {
			if position[depID] >= position[node.ID] {
				t.Errorf("dependency %s sorted after dependent %s", depID, node.ID)
			}
		}
	}
}

func TestTopologicalSortDeclarationOrderTieBreak(t *testing.T) {
	g := NewGraph()

	// a, b, c are mutually independent; order must follow declaration.
	_ = g.AddNode(NewNode("c", "network"))
	_ = g.AddNode(NewNode("a", "network"))
	_ = g.AddNode(NewNode("b", "network"))

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, node := range sorted {
		if node.ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, node.ID, want[i])
		}
	}
}

func TestReverseTopologicalSort(t *testing.T) {
	g := NewGraph()

	_ = g.AddNode(NewNode("vpc", "network"))
	_ = g.AddNode(NewNode("cluster", "cluster"))
	_ = g.AddEdge("cluster", "vpc")

	sorted, err := g.ReverseTopologicalSort()
	if err != nil {
		t.Fatalf("ReverseTopologicalSort failed: %v", err)
	}

	if sorted[0].ID != "cluster" || sorted[1].ID != "vpc" {
		t.Errorf("got order [%s %s], want [cluster vpc]", sorted[0].ID, sorted[1].ID)
	}
}

func TestFindCycleReportsSimpleCycle(t *testing.T) {
	g := NewGraph()

	_ = g.AddNode(NewNode("a", "network"))
	_ = g.AddNode(NewNode("b", "cluster"))
	_ = g.AddNode(NewNode("c", "service"))
	_ = g.AddNode(NewNode("standalone", "bucket"))

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	cycle := g.FindCycle()
	if cycle == nil {
		t.Fatal("expected a cycle")
	}
	if len(cycle) != 3 {
		t.Fatalf("cycle length: got %d, want 3: %v", len(cycle), cycle)
	}

	// Verify the reported cycle is a valid simple cycle: each entry depends
	// on the next, and the last depends on the first.
	seen := make(map[string]bool)
	for i, id := range cycle {
		if seen[id] {
			t.Fatalf("cycle is not simple: %v", cycle)
		}
		seen[id] = true

		next := cycle[(i+1)%len(cycle)]
		found := false
		for _, depID := range g.Nodes[id].DependsOn {
			if depID == next {
				found = true
			}
		}
		if !found {
			t.Errorf("%s does not depend on %s in reported cycle %v", id, next, cycle)
		}
	}

	if _, err := g.TopologicalSort(); !errors.Is(err, errors.ErrCodeCyclicDependency) {
		t.Errorf("TopologicalSort error: got %v, want CYCLIC_DEPENDENCY", err)
	}
}

func TestFindCycleSelfReference(t *testing.T) {
	g := NewGraph()
	node := NewNode("loop", "service")
	node.AddDependency("loop")
	_ = g.AddNode(node)

	cycle := g.FindCycle()
	if len(cycle) != 1 || cycle[0] != "loop" {
		t.Errorf("got cycle %v, want [loop]", cycle)
	}
}

func TestFindCycleAcyclic(t *testing.T) {
	g := NewGraph()
	_ = g.AddNode(NewNode("a", "network"))
	_ = g.AddNode(NewNode("b", "cluster"))
	_ = g.AddEdge("b", "a")

	if cycle := g.FindCycle(); cycle != nil {
		t.Errorf("expected no cycle, got %v", cycle)
	}
}
