package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackline-io/stackctl/pkg/apply"
	"github.com/stackline-io/stackctl/pkg/remote"
)

func newDestroyCmd() *cobra.Command {
	var (
		providerName  string
		parallelism   int
		autoApprove   bool
		purge         bool
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "destroy <stack>",
		Short: "Tear down every resource in a stack",
		Long: `Remove all deployed resources of a stack in reverse dependency order:
dependents are torn down before the resources they depend on.

With --purge the stack record and its stored plans are removed from the
state backend once every resource is gone.

Examples:
  stackctl destroy prod
  stackctl destroy staging --auto-approve --purge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stackName := args[0]

			mgr, err := createStateManager(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create state manager: %w", err)
			}

			s, err := mgr.GetStack(ctx, stackName)
			if err != nil {
				return err
			}
			if len(s.Resources) == 0 {
				fmt.Printf("Stack %q has no deployed resources.\n", stackName)
				if purge {
					if err := mgr.DeleteStack(ctx, stackName); err != nil {
						return fmt.Errorf("failed to purge stack %q: %w", stackName, err)
					}
					fmt.Printf("Stack %q removed from the state backend.\n", stackName)
				}
				return nil
			}

			fmt.Printf("Stack %q has %d deployed resource(s).\n", stackName, len(s.Resources))
			if !autoApprove {
				if !isInteractive() {
					return fmt.Errorf("refusing to destroy without --auto-approve in a non-interactive session")
				}
				if !confirm(fmt.Sprintf("Destroy all resources in %q?", stackName)) {
					fmt.Println("Destroy cancelled.")
					return nil
				}
			}

			provider, err := remote.Get(providerName)
			if err != nil {
				return err
			}

			orchestrator := apply.New(mgr, provider, apply.Options{
				Parallelism: parallelism,
				Who:         whoami(),
				Logger:      log.Logger,
			})

			result, err := orchestrator.Destroy(ctx, stackName)
			if err != nil {
				return err
			}

			fmt.Printf("\nDestroy complete: %d succeeded, %d failed, %d skipped.\n",
				result.Succeeded, result.Failed, result.Skipped)
			if result.HasFailures() {
				return fmt.Errorf("destroy finished with failures")
			}

			if purge {
				if err := mgr.DeleteStack(ctx, stackName); err != nil {
					return fmt.Errorf("failed to purge stack %q: %w", stackName, err)
				}
				fmt.Printf("Stack %q removed from the state backend.\n", stackName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "memory", "Provider to execute changes with")
	cmd.Flags().IntVar(&parallelism, "parallelism", apply.DefaultParallelism, "Maximum concurrent resource operations")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the interactive confirmation prompt")
	cmd.Flags().BoolVar(&purge, "purge", false, "Remove the stack record and stored plans after a successful destroy")
	cmd.Flags().StringVar(&backendType, "backend", "", "State backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
