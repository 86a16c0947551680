package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/errors"
)

func TestBuilderDuplicateIdentifier(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "X", Type: "network"}))

	err := b.Add(Declaration{ID: "X", Type: "cluster"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateIdentifier))
}

func TestBuilderExplicitDependencies(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "cluster", Type: "cluster", DependsOn: []string{"vpc"}}))
	require.NoError(t, b.Add(Declaration{ID: "vpc", Type: "network"}))

	g, err := b.Build()
	require.NoError(t, err)

	cluster := g.GetNode("cluster")
	require.NotNil(t, cluster)
	assert.Equal(t, []string{"vpc"}, cluster.DependsOn)
	assert.Equal(t, []string{"cluster"}, g.GetNode("vpc").DependedOnBy)
}

func TestBuilderUnresolvedReference(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "cluster", Type: "cluster", DependsOn: []string{"vpc"}}))

	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnresolvedReference))
}

func TestBuilderImplicitTokenDependencies(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "vpc", Type: "network"}))
	require.NoError(t, b.Add(Declaration{
		ID:   "cluster",
		Type: "cluster",
		Properties: map[string]interface{}{
			"network_id": "${{ vpc.id }}",
		},
	}))

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"vpc"}, g.GetNode("cluster").DependsOn)
}

func TestBuilderNestedTokenDependencies(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "vpc", Type: "network"}))
	require.NoError(t, b.Add(Declaration{ID: "db", Type: "database"}))
	require.NoError(t, b.Add(Declaration{
		ID:   "service",
		Type: "service",
		Properties: map[string]interface{}{
			"environment": map[string]interface{}{
				"DATABASE_URL": "${{ db.url }}",
			},
			"subnets": []interface{}{"${{ vpc.subnet_a }}", "${{ vpc.subnet_b }}"},
		},
	}))

	g, err := b.Build()
	require.NoError(t, err)

	deps := g.GetNode("service").DependsOn
	assert.ElementsMatch(t, []string{"vpc", "db"}, deps)
}

func TestBuilderDanglingTokenIsNotABuildError(t *testing.T) {
	// Tokens that name unknown resources are left for the synthesizer to
	// reject; the builder only wires edges for targets that exist.
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{
		ID:   "service",
		Type: "service",
		Properties: map[string]interface{}{
			"endpoint": "${{ ghost.url }}",
		},
	}))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Empty(t, g.GetNode("service").DependsOn)
}

func TestBuilderCycleDetection(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.Add(Declaration{ID: "a", Type: "service", DependsOn: []string{"b"}}))
	require.NoError(t, b.Add(Declaration{ID: "b", Type: "service", DependsOn: []string{"a"}}))

	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCyclicDependency))

	structured, ok := err.(*errors.Error)
	require.True(t, ok)
	cycle, ok := structured.Details["cycle"].([]string)
	require.True(t, ok)
	assert.Len(t, cycle, 2)
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []Token
	}{
		{
			name:  "no tokens",
			value: "plain value",
			want:  nil,
		},
		{
			name:  "single token",
			value: "${{ vpc.id }}",
			want:  []Token{{Resource: "vpc", Attribute: "id", Raw: "${{ vpc.id }}"}},
		},
		{
			name:  "embedded token",
			value: "postgres://${{ db.host }}:5432",
			want:  []Token{{Resource: "db", Attribute: "host", Raw: "${{ db.host }}"}},
		},
		{
			name:  "multiple tokens",
			value: "${{ a.x }}-${{ b.y }}",
			want: []Token{
				{Resource: "a", Attribute: "x", Raw: "${{ a.x }}"},
				{Resource: "b", Attribute: "y", Raw: "${{ b.y }}"},
			},
		},
		{
			name:  "nested attribute path",
			value: "${{ lb.listeners.http }}",
			want:  []Token{{Resource: "lb", Attribute: "listeners.http", Raw: "${{ lb.listeners.http }}"}},
		},
		{
			name:  "missing attribute is ignored",
			value: "${{ vpc }}",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTokens(tt.value))
		})
	}
}
