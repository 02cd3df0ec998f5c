package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/svdrp/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()

		_, err := fmt.Fprintf(cmd.OutOrStdout(),
			"svdrp %s, branch %s\nbuilt %s with %s on %s %s\n",
			info, info.Branch, info.BuildTime, info.GoVersion, info.Platform, info.GoTag)

		return err
	},
}
