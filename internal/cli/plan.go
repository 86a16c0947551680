package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var (
		stackName     string
		variables     []string
		varFiles      []string
		output        string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "plan <path>",
		Short: "Synthesize a deployment plan from a stack configuration",
		Long: `Parse a stack configuration, build the dependency graph, and produce a
deployment plan with resources in dependency order. The plan is stored in
the state backend so it can be applied later by id.

Examples:
  stackctl plan ./infra
  stackctl plan ./infra/stack.hcl --var region=eu-west-1
  stackctl plan ./infra -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			s, err := loadStack(args[0], stackName, variables, varFiles)
			if err != nil {
				return err
			}

			p, err := synthesizeStack(s)
			if err != nil {
				return err
			}

			mgr, err := createStateManager(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create state manager: %w", err)
			}
			if err := mgr.SavePlan(ctx, p); err != nil {
				return fmt.Errorf("failed to save plan: %w", err)
			}

			if output == "json" {
				data, err := p.MarshalIndent()
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, string(data))
				return nil
			}

			fmt.Printf("Plan %s for stack %q: %d resource(s)\n", p.ID, p.Stack, len(p.Resources))
			for _, r := range p.Resources {
				fmt.Printf("  %s (%s)\n", r.ID, r.Type)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stackName, "stack", "s", "", "Stack name (defaults to the configured or path-derived name)")
	cmd.Flags().StringArrayVar(&variables, "var", nil, "Input variable (key=value)")
	cmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "File with input variables (key=value per line)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format (json)")
	cmd.Flags().StringVar(&backendType, "backend", "", "State backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
