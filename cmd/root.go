package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/svdrp/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "svdrp",
	Short: "Talk to SVDRP servers",
	Long: `Talk to SVDRP servers

Runs commands against a recorder's SVDRP port, or serves a small HTTP
bridge that hands out pooled connections to other processes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.AddCommand(ExecCmd)
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
