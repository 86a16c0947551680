package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/graph"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	require.NoError(t, b.Add(graph.Declaration{ID: "vpc", Type: "network/vpc"}))
	require.NoError(t, b.Add(graph.Declaration{
		ID:   "subnet",
		Type: "network/subnet",
		Properties: map[string]interface{}{
			"vpc": "${{ vpc.id }}",
		},
	}))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestGenerateDOT(t *testing.T) {
	out, err := (&Generator{}).GenerateString(testGraph(t))
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "network/vpc")
	assert.Contains(t, out, "->")
}

func TestGenerateMermaid(t *testing.T) {
	out, err := (&Generator{Format: FormatMermaid}).GenerateString(testGraph(t))
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
}
