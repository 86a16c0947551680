package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewWithEmulatorEndpoint(t *testing.T) {
	b, err := New(map[string]string{
		"bucket":   "state",
		"prefix":   "stackctl",
		"endpoint": "http://localhost:4443/storage/v1/",
	})
	require.NoError(t, err)
	assert.Equal(t, "gcs", b.Type())
}
