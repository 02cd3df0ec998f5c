// Package gen holds generators for files that ship with the svdrp binary.
package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate files that ship with svdrp",
	Long: `Generate files that ship with svdrp

Usage
	svdrp gen man --dir /usr/local/share/man/man1

`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
