package gen

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/svdrp/internal/meta"
)

var (
	manDir string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for svdrp",
	Long: `Generate one man page per svdrp command, svdrp-exec(1),
svdrp-serve(1) and so on, covering the flags that pick the SVDRP server
and the SVDRP_* environment variables. Pages are written to the "man"
directory under the current directory unless --dir says otherwise.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Generating svdrp man pages in", manDir, "...")

		if err := WriteManPages(cmd.Root(), manDir); err != nil {
			return err
		}

		fmt.Fprintln(out, "Done.")

		return nil
	},
}

// WriteManPages writes section 1 pages for root and all its subcommands to
// dir, creating dir if needed.
func WriteManPages(root *cobra.Command, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	header := &doc.GenManHeader{
		Section: "1",
		Manual:  "SVDRP client manual",
		Source:  fmt.Sprintf("svdrp %s", meta.GetInfo()),
	}

	root.DisableAutoGenTag = true

	return doc.GenManTree(root, header, dir)
}

func init() {
	flags := ManPagesCmd.PersistentFlags()

	flags.StringVar(&manDir, "dir", "man", "the directory to write the man pages.")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
