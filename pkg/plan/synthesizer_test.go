package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/graph"
)

func buildGraph(t *testing.T, decls ...graph.Declaration) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for _, decl := range decls {
		require.NoError(t, b.Add(decl))
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestSynthesizeOrdersByDependency(t *testing.T) {
	g := buildGraph(t,
		graph.Declaration{
			ID:   "app",
			Type: "service",
			Properties: map[string]interface{}{
				"subnet": "${{ subnet.id }}",
			},
		},
		graph.Declaration{
			ID:   "subnet",
			Type: "network/subnet",
			Properties: map[string]interface{}{
				"vpc": "${{ vpc.id }}",
			},
		},
		graph.Declaration{
			ID:         "vpc",
			Type:       "network/vpc",
			Properties: map[string]interface{}{"cidr": "10.0.0.0/16"},
		},
	)

	p, err := NewSynthesizer().Synthesize("prod", g)
	require.NoError(t, err)
	require.Len(t, p.Resources, 3)
	assert.Equal(t, "vpc", p.Resources[0].ID)
	assert.Equal(t, "subnet", p.Resources[1].ID)
	assert.Equal(t, "app", p.Resources[2].ID)
	assert.Equal(t, "prod", p.Stack)
	assert.NotEmpty(t, p.ID)
}

func TestSynthesizeClassifiesValues(t *testing.T) {
	g := buildGraph(t,
		graph.Declaration{
			ID:         "db",
			Type:       "postgres",
			Properties: map[string]interface{}{"version": "16"},
		},
		graph.Declaration{
			ID:   "app",
			Type: "service",
			Properties: map[string]interface{}{
				"replicas": 3,
				"db_url":   "postgres://${{ db.host }}:5432",
			},
		},
	)

	p, err := NewSynthesizer().Synthesize("dev", g)
	require.NoError(t, err)

	db := p.Resource("db")
	require.NotNil(t, db)
	assert.False(t, db.Properties["version"].IsDeferred())
	assert.Equal(t, "16", db.Properties["version"].Value())

	app := p.Resource("app")
	require.NotNil(t, app)
	assert.False(t, app.Properties["replicas"].IsDeferred())

	url := app.Properties["db_url"]
	require.True(t, url.IsDeferred())
	tokens := url.Tokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "db", tokens[0].Resource)
	assert.Equal(t, "host", tokens[0].Attribute)
	assert.Equal(t, []string{"db"}, app.DependsOn)
}

func TestSynthesizeDanglingToken(t *testing.T) {
	g := buildGraph(t,
		graph.Declaration{
			ID:   "app",
			Type: "service",
			Properties: map[string]interface{}{
				"subnet": "${{ missing.id }}",
			},
		},
	)

	_, err := NewSynthesizer().Synthesize("dev", g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnresolvableProperty))
}

func TestSynthesizeNestedDeferred(t *testing.T) {
	g := buildGraph(t,
		graph.Declaration{ID: "vpc", Type: "network/vpc"},
		graph.Declaration{
			ID:   "lb",
			Type: "loadbalancer",
			Properties: map[string]interface{}{
				"targets": []interface{}{
					map[string]interface{}{"vpc": "${{ vpc.id }}", "port": 80},
				},
			},
		},
	)

	p, err := NewSynthesizer().Synthesize("dev", g)
	require.NoError(t, err)

	lb := p.Resource("lb")
	require.NotNil(t, lb)
	require.True(t, lb.Properties["targets"].IsDeferred())
	require.Len(t, lb.Properties["targets"].Tokens(), 1)
}

func TestPlanRoundTrip(t *testing.T) {
	g := buildGraph(t,
		graph.Declaration{ID: "vpc", Type: "network/vpc", Properties: map[string]interface{}{"cidr": "10.0.0.0/16", "mtu": 1500}},
		graph.Declaration{
			ID:         "subnet",
			Type:       "network/subnet",
			Properties: map[string]interface{}{"vpc": "${{ vpc.id }}", "public": true},
		},
	)

	p, err := NewSynthesizer().Synthesize("prod", g)
	require.NoError(t, err)

	data, err := p.MarshalIndent()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, p.ID, restored.ID)
	require.Len(t, restored.Resources, 2)
	for i := range p.Resources {
		assert.True(t, p.Resources[i].Equal(&restored.Resources[i]), "resource %s", p.Resources[i].ID)
	}
}
