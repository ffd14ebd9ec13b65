package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow-id>",
	Short: "Render a flow's topology as a Mermaid diagram",
	Long: `Prints the flow as Mermaid flowchart syntax, suitable for pasting
into documentation or a Mermaid live editor. Iteration bodies render as
nested subgraphs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Print(graph.GenerateMermaid(flow.Nodes, flow.Edges, graph.StatusOverlay(flow.Nodes)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
