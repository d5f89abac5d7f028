package cmd

import (
	"fmt"
	"os"

	"stemlab/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stemlab",
	Short: "StemLab separates audio into stems and manages the resulting library.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
