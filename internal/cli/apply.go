package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackline-io/stackctl/pkg/apply"
	"github.com/stackline-io/stackctl/pkg/diff"
	"github.com/stackline-io/stackctl/pkg/remote"
)

func newApplyCmd() *cobra.Command {
	var (
		stackName     string
		variables     []string
		varFiles      []string
		providerName  string
		parallelism   int
		autoApprove   bool
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "apply <path>",
		Short: "Deploy a stack configuration",
		Long: `Synthesize a plan from the configuration, show the pending changes, and
execute them in dependency order. Independent resources deploy in parallel
up to the configured limit.

A failing resource skips its dependents but does not stop unrelated work.
The command exits non-zero when any change failed or was skipped.

Interrupting the run (Ctrl-C) lets in-flight changes finish and skips the
rest.

Examples:
  stackctl apply ./infra
  stackctl apply ./infra --auto-approve --parallelism 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := loadStack(args[0], stackName, variables, varFiles)
			if err != nil {
				return err
			}
			next, err := synthesizeStack(s)
			if err != nil {
				return err
			}

			mgr, err := createStateManager(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create state manager: %w", err)
			}

			prev, err := lastApplied(ctx, mgr, next.Stack)
			if err != nil {
				return err
			}
			cs := diff.Compare(prev, next)
			fmt.Print(renderChangeSet(cs))
			if cs.IsEmpty() {
				return nil
			}

			if !autoApprove {
				if !isInteractive() {
					return fmt.Errorf("refusing to apply without --auto-approve in a non-interactive session")
				}
				if !confirm("Apply these changes?") {
					fmt.Println("Apply cancelled.")
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

			result, err := orchestrator.Apply(ctx, next)
			if err != nil {
				return err
			}

			fmt.Printf("\nApply complete: %d succeeded, %d failed, %d skipped.\n",
				result.Succeeded, result.Failed, result.Skipped)
			if result.HasFailures() {
				return fmt.Errorf("apply finished with failures")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stackName, "stack", "s", "", "Stack name")
	cmd.Flags().StringArrayVar(&variables, "var", nil, "Input variable (key=value)")
	cmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "File with input variables (key=value per line)")
	cmd.Flags().StringVar(&providerName, "provider", "memory", "Provider to execute changes with")
	cmd.Flags().IntVar(&parallelism, "parallelism", apply.DefaultParallelism, "Maximum concurrent resource operations")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the interactive confirmation prompt")
	cmd.Flags().StringVar(&backendType, "backend", "", "State backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
