package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow/internal/presentation/tui"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <flow-id>",
	Short: "Show a flow's debug conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}
		ws, err := newWorkspace(cmd, flow)
		if err != nil {
			return err
		}
		defer ws.Close(context.WithoutCancel(cmd.Context()))

		if err := ws.LoadTranscript(cmd.Context()); err != nil {
			return err
		}

		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			if err := ws.ClearTranscript(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Transcript cleared.")
			return nil
		}

		entries := ws.Transcript()
		if len(entries) == 0 {
			fmt.Println("No transcript yet.")
			return nil
		}
		fmt.Print(tui.FormatTranscript(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.Flags().Bool("clear", false, "Delete the stored history instead of showing it")
}
