package s3

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

func TestNewWithEndpoint(t *testing.T) {
	b, err := New(map[string]string{
		"bucket":           "state",
		"endpoint":         "http://localhost:9000",
		"force_path_style": "true",
		"access_key":       "minio",
		"secret_key":       "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", b.Type())
}
