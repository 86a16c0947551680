package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackline-io/stackctl/pkg/graph/visual"
)

func newGraphCmd() *cobra.Command {
	var (
		stackName string
		variables []string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "graph <path>",
		Short: "Render the resource dependency graph",
		Long: `Build the dependency graph from a stack configuration and render it in
Graphviz DOT or Mermaid format.

The DOT output can be piped to Graphviz:
  stackctl graph ./infra | dot -Tpng > graph.png

Or embedded in GitHub markdown (Mermaid format):
  stackctl graph ./infra -f mermaid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStack(args[0], stackName, variables, nil)
			if err != nil {
				return err
			}
			g, err := s.Graph()
			if err != nil {
				return err
			}

			var visualFormat visual.Format
			switch format {
			case "dot", "":
				visualFormat = visual.FormatDOT
			case "mermaid":
				visualFormat = visual.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
			}

			generator := &visual.Generator{Format: visualFormat}
			return generator.Generate(g, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&stackName, "stack", "s", "", "Stack name")
	cmd.Flags().StringArrayVar(&variables, "var", nil, "Input variable (key=value)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format: dot or mermaid")

	return cmd
}
