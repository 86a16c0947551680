package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/diff"
	"github.com/stackline-io/stackctl/pkg/plan"
)

func TestParseVars(t *testing.T) {
	vars := parseVars([]string{"region=eu-west-1", "replicas=3", "malformed"})
	assert.Equal(t, map[string]string{
		"region":   "eu-west-1",
		"replicas": "3",
	}, vars)
}

func TestNormalizeConfigKey(t *testing.T) {
	assert.Equal(t, "backend", normalizeConfigKey("backend"))
	assert.Equal(t, "some_key", normalizeConfigKey("some-key"))
}

func TestRenderChangeSetEmpty(t *testing.T) {
	cs := diff.Compare(nil, plan.New("prod"))
	assert.Equal(t, "No changes.\n", renderChangeSet(cs))
}

func TestRenderChangeSet(t *testing.T) {
	next := plan.New("prod")
	next.Resources = []plan.ResourceDescription{
		{ID: "vpc", Type: "network/vpc"},
		{ID: "subnet", Type: "network/subnet", DependsOn: []string{"vpc"}},
	}

	out := renderChangeSet(diff.Compare(nil, next))
	assert.Contains(t, out, "+ vpc (network/vpc)")
	assert.Contains(t, out, "+ subnet (network/subnet)")
	assert.Contains(t, out, "Plan: 2 to add, 0 to change, 0 to remove.")
}

func TestCreateStateManagerFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvStateBackend, "local")
	t.Setenv("STACKCTL_STATE_PATH", dir)

	mgr, err := createStateManager("", nil)
	require.NoError(t, err)
	assert.Equal(t, "local", mgr.Backend().Type())
}

func TestCreateStateManagerFlagOverridesEnv(t *testing.T) {
	t.Setenv(EnvStateBackend, "s3")

	mgr, err := createStateManager("local", []string{"path=" + t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", mgr.Backend().Type())
}

func TestLoadStackFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/stack.hcl"
	writeFile(t, path, `
resource "network/vpc" "vpc" {
  cidr = "10.0.0.0/16"
}
`)

	s, err := loadStack(path, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "stack", s.Name)
	require.Len(t, s.Resources, 1)

	named, err := loadStack(path, "prod", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", named.Name)
}

func TestLoadStackVariablePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/stack.hcl"
	writeFile(t, path, `
variable "region" {
  default = "us-east-1"
}

resource "network/vpc" "vpc" {
  region = var.region
}
`)
	writeFile(t, dir+"/.env", "region=eu-west-1\n")

	s, err := loadStack(path, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", s.Resources[0].Properties["region"])

	varFile := dir + "/prod.env"
	writeFile(t, varFile, "region=eu-central-1\n")
	s, err = loadStack(path, "", nil, []string{varFile})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", s.Resources[0].Properties["region"])

	s, err = loadStack(path, "", []string{"region=ap-south-1"}, []string{varFile})
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", s.Resources[0].Properties["region"])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
