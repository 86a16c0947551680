package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/remote"
)

func TestCreateAssignsID(t *testing.T) {
	p := New()
	res, err := p.Create(context.Background(), remote.Request{
		Stack:      "dev",
		Resource:   "vpc",
		Type:       "network/vpc",
		Properties: map[string]interface{}{"cidr": "10.0.0.0/16"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Outputs["id"])
	assert.Equal(t, "10.0.0.0/16", res.Outputs["cidr"])

	_, err = p.Create(context.Background(), remote.Request{Stack: "dev", Resource: "vpc"})
	assert.Error(t, err)
}

func TestUpdatePreservesID(t *testing.T) {
	p := New()
	created, err := p.Create(context.Background(), remote.Request{Stack: "dev", Resource: "db", Type: "postgres"})
	require.NoError(t, err)

	updated, err := p.Update(context.Background(), remote.Request{
		Stack:      "dev",
		Resource:   "db",
		Type:       "postgres",
		Properties: map[string]interface{}{"version": "17"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.Outputs["id"], updated.Outputs["id"])
	assert.Equal(t, "17", updated.Outputs["version"])
}

func TestDelete(t *testing.T) {
	p := New()
	_, err := p.Create(context.Background(), remote.Request{Stack: "dev", Resource: "db"})
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	require.NoError(t, p.Delete(context.Background(), remote.Request{Stack: "dev", Resource: "db"}))
	assert.Equal(t, 0, p.Len())

	err = p.Delete(context.Background(), remote.Request{Stack: "dev", Resource: "db"})
	assert.Error(t, err)
}

func TestStacksAreIsolated(t *testing.T) {
	p := New()
	_, err := p.Create(context.Background(), remote.Request{Stack: "dev", Resource: "db"})
	require.NoError(t, err)
	_, err = p.Create(context.Background(), remote.Request{Stack: "prod", Resource: "db"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
}
