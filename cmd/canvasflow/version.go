package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of canvasflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("canvasflow version %s\n", strings.TrimSpace(canvasflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
