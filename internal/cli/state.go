package cli

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/stackline-io/stackctl/pkg/state"
	"github.com/stackline-io/stackctl/pkg/state/backend"
)

// Environment variable names for state backend configuration.
const (
	// EnvStateBackend sets the state backend type (local, s3, gcs, azurerm).
	EnvStateBackend = "STACKCTL_STATE_BACKEND"

	// EnvStatePrefix is the prefix for backend-specific config environment
	// variables. STACKCTL_STATE_PATH sets "path" for the local backend,
	// STACKCTL_STATE_BUCKET sets "bucket" for S3 and GCS, and so on.
	EnvStatePrefix = "STACKCTL_STATE_"
)

// createStateManager creates a state manager with the given backend type and
// config.
//
// Configuration precedence (highest to lowest):
//  1. CLI flags (--backend, --backend-config)
//  2. Environment variables (STACKCTL_STATE_BACKEND, STACKCTL_STATE_*)
//  3. Config file (~/.stackctl/config.yaml, key "backend")
//  4. Hardcoded default (local backend with ~/.stackctl/state)
func createStateManager(backendType string, backendConfig []string) (state.Manager, error) {
	effectiveType := "local"
	settings := map[string]string{}

	if configured := viper.GetString(ConfigKeyBackend); configured != "" {
		effectiveType = configured
	}
	if envBackend := os.Getenv(EnvStateBackend); envBackend != "" {
		effectiveType = envBackend
	}

	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvStatePrefix) && !strings.HasPrefix(env, EnvStateBackend) {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				key := strings.ToLower(strings.TrimPrefix(parts[0], EnvStatePrefix))
				settings[key] = parts[1]
			}
		}
	}

	if backendType != "" {
		effectiveType = backendType
	}
	for _, pair := range backendConfig {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			settings[parts[0]] = parts[1]
		}
	}

	return state.NewManagerFromConfig(backend.Config{
		Type:     effectiveType,
		Settings: settings,
	})
}
