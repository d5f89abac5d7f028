package cmd

import (
	"stemlab/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the StemLab HTTP server",
	Long:  `Start the StemLab HTTP server, serving the separation API, the library catalog and the web interface.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
