package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/canvasflow/canvasflow"
	"github.com/canvasflow/canvasflow/internal/presentation/tui"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <flow-id> [question]",
	Short: "Debug a flow interactively",
	Long: `Starts a streaming debug run of the flow. Streamed answers are echoed as
they arrive; when the run pauses on a question you are prompted for a
reply (type "ignore" to skip it, "exit" to abort).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}

		headless, _ := cmd.Flags().GetBool("headless")
		pairs, _ := cmd.Flags().GetStringSlice("input")
		inputs := make(map[string]any)
		for _, pair := range pairs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --input %q, expected key=value", pair)
			}
			inputs[key] = value
		}
		if len(args) > 1 {
			inputs[domain.KeyUserInput] = args[1]
		}

		ws, err := newWorkspace(cmd, flow)
		if err != nil {
			return err
		}
		defer ws.Close(context.WithoutCancel(cmd.Context()))

		interactive := term.IsTerminal(int(os.Stdout.Fd())) && !headless
		if interactive {
			tui.PrintBanner()
		}

		runner := canvasflow.NewRunner()
		runner.Input = os.Stdin
		runner.Output = os.Stdout
		runner.Headless = !interactive
		if interactive {
			runner.Renderer = tui.NewRenderer()
		}

		return runner.Run(cmd.Context(), ws, inputs)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Plain output, no banner or markdown rendering")
	runCmd.Flags().StringSlice("input", nil, "Start-node input as key=value (repeatable)")
}
