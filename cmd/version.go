package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=..."
var Version = "0.1.0-dev"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		printf(cmd.OutOrStdout(), "wfkit version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
