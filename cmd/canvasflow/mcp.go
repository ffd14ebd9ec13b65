package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow"
	mcpadapter "github.com/canvasflow/canvasflow/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <flow-id>",
	Short: "Expose a flow workspace as an MCP server",
	Long: `Serves the workspace to agent hosts over the Model Context Protocol:
run_flow, resume_run, abort_run, validate_flow, undo and get_transcript
tools plus the flow definition as a resource. Speaks stdio by default.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		ws, err := newWorkspace(cmd, flow, canvasflow.Autonomous())
		if err != nil {
			return err
		}
		defer ws.Close(context.WithoutCancel(cmd.Context()))

		server := mcpadapter.NewServer(ws)

		if ssePort, _ := cmd.Flags().GetInt("sse"); ssePort > 0 {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ServeSSE(ctx, ssePort)
		}
		return server.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Int("sse", 0, "Serve over SSE on this port instead of stdio")
}
