package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newShowCmd() *cobra.Command {
	var (
		planID        string
		output        string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "show <stack>",
		Short: "Show the state of a stack or a stored plan",
		Long: `Print the persisted state of a stack, or a stored plan when --plan is
given.

Examples:
  stackctl show prod
  stackctl show prod -o yaml
  stackctl show prod --plan 4f1f7c9e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			stackName := args[0]

			mgr, err := createStateManager(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create state manager: %w", err)
			}

			var value interface{}
			if planID != "" {
				p, err := mgr.GetPlan(ctx, stackName, planID)
				if err != nil {
					return err
				}
				value = p
			} else {
				s, err := mgr.GetStack(ctx, stackName)
				if err != nil {
					return err
				}
				value = s
			}

			switch output {
			case "yaml":
				// Round-trip through JSON so custom JSON marshalers apply.
				raw, err := json.Marshal(value)
				if err != nil {
					return err
				}
				var generic interface{}
				if err := json.Unmarshal(raw, &generic); err != nil {
					return err
				}
				data, err := yaml.Marshal(generic)
				if err != nil {
					return err
				}
				fmt.Print(string(data))
			case "json", "":
				data, err := json.MarshalIndent(value, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			default:
				return fmt.Errorf("unknown output format: %s (use 'json' or 'yaml')", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planID, "plan", "", "Show the stored plan with this id instead of the stack state")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json, yaml)")
	cmd.Flags().StringVar(&backendType, "backend", "", "State backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
