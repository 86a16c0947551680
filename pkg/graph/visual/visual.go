// Package visual renders dependency graphs in DOT and Mermaid formats.
package visual

import (
	"io"
	"strings"

	"github.com/emicklei/dot"

	"github.com/stackline-io/stackctl/pkg/graph"
)

// Format selects the output format.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator renders resource graphs.
type Generator struct {
	// Format of the output. Defaults to dot.
	Format Format
}

// Generate renders the graph and writes it to w. Nodes appear in declaration
// order; edges point from dependent to dependency.
func (g *Generator) Generate(resourceGraph *graph.Graph, w io.Writer) error {
	format := g.Format
	if format == "" {
		format = FormatDOT
	}

	built := g.build(resourceGraph)

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(built, dot.MermaidTopToBottom)
	} else {
		output = built.String()
	}

	_, err := w.Write([]byte(output))
	return err
}

// GenerateString renders the graph as a string.
func (g *Generator) GenerateString(resourceGraph *graph.Graph) (string, error) {
	var sb strings.Builder
	if err := g.Generate(resourceGraph, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) build(resourceGraph *graph.Graph) *dot.Graph {
	built := dot.NewGraph(dot.Directed)
	built.Attr("rankdir", "TB")

	built.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	for _, id := range resourceGraph.DeclarationOrder() {
		node := resourceGraph.GetNode(id)
		if node == nil {
			continue
		}
		n := built.Node(id)
		n.Label(id + "\\n[" + node.Type + "]")
	}

	for _, id := range resourceGraph.DeclarationOrder() {
		node := resourceGraph.GetNode(id)
		if node == nil {
			continue
		}
		for _, dep := range node.DependsOn {
			built.Edge(built.Node(id), built.Node(dep))
		}
	}

	return built
}
