package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// ConfigKeyBackend is the viper/config key for the default state backend.
	ConfigKeyBackend = "backend"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Get and set stackctl CLI configuration values stored in ~/.stackctl/config.yaml.`,
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in ~/.stackctl/config.yaml.

Available keys:
  backend    The state backend used when --backend is not specified.

Examples:
  stackctl config set backend s3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := normalizeConfigKey(args[0])
			value := args[1]

			switch key {
			case ConfigKeyBackend:
			default:
				return fmt.Errorf("unknown configuration key %q\n\nAvailable keys:\n  backend", args[0])
			}

			viper.Set(key, value)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Set %s = %s\n", args[0], value)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := viper.GetString(normalizeConfigKey(args[0]))
			if value == "" {
				fmt.Printf("%s is not set\n", args[0])
			} else {
				fmt.Println(value)
			}
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := viper.GetString(ConfigKeyBackend)

			fmt.Println("Configuration:")
			if backend != "" {
				fmt.Printf("  backend = %s\n", backend)
			} else {
				fmt.Println("  (no values set)")
			}
			return nil
		},
	}
}

// normalizeConfigKey allows dashes on the CLI while storing underscores.
func normalizeConfigKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

func writeConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".stackctl")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
