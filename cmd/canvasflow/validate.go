package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow-id>",
	Short: "Check every node of a flow for consistency",
	Long: `Validates the whole graph: required inputs bound, slot names unique,
output types well formed, per-type parameters complete. Reports each
failing node.`,
	Args: cobra.ExactArgs(1),
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

		if err := ws.CheckAll(); err != nil {
			return err
		}
		fmt.Println("Flow is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
