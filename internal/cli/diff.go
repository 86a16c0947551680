package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackline-io/stackctl/pkg/diff"
	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/state"
)

func newDiffCmd() *cobra.Command {
	var (
		stackName     string
		variables     []string
		varFiles      []string
		output        string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Show what would change if the configuration were applied",
		Long: `Synthesize a plan from the configuration and compare it against the last
applied plan for the stack. Nothing is deployed.

Examples:
  stackctl diff ./infra
  stackctl diff ./infra -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

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
			if output == "json" {
				data, err := json.MarshalIndent(cs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Print(renderChangeSet(cs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&stackName, "stack", "s", "", "Stack name")
	cmd.Flags().StringArrayVar(&variables, "var", nil, "Input variable (key=value)")
	cmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "File with input variables (key=value per line)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format (json)")
	cmd.Flags().StringVar(&backendType, "backend", "", "State backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}

// lastApplied returns the stack's last applied plan, or nil for a new stack.
func lastApplied(ctx context.Context, mgr state.Manager, stackName string) (*plan.Plan, error) {
	s, err := mgr.GetStack(ctx, stackName)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.LastApplied, nil
}

var actionSymbols = map[diff.Action]string{
	diff.ActionAdd:    "+",
	diff.ActionRemove: "-",
	diff.ActionModify: "~",
	diff.ActionNoop:   " ",
}

// renderChangeSet formats a change set for terminal output.
func renderChangeSet(cs *diff.ChangeSet) string {
	if cs.IsEmpty() {
		return "No changes.\n"
	}

	var sb strings.Builder
	for _, change := range cs.Changes {
		if change.Action == diff.ActionNoop {
			continue
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", actionSymbols[change.Action], change.ResourceID, change.Type)
		for _, delta := range change.Deltas {
			fmt.Fprintf(&sb, "    %s: %v -> %v\n", delta.Path, delta.OldValue, delta.NewValue)
		}
	}

	summary := cs.Summarize()
	fmt.Fprintf(&sb, "\nPlan: %d to add, %d to change, %d to remove.\n",
		summary.Add, summary.Modify, summary.Remove)
	return sb.String()
}
