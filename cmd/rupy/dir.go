package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feather-lang/rupy"
)

var dirAll bool

var dirCmd = &cobra.Command{
	Use:   "dir <module>",
	Short: "List the attributes of a guest module",
	Long: `List the attributes of a guest module, one per line.

Examples:
  rupy dir math

  # Include names starting with an underscore
  rupy dir --all string`,
	Args: cobra.ExactArgs(1),
	RunE: runDir,
}

func init() {
	dirCmd.Flags().BoolVarP(&dirAll, "all", "a", false, "include private names")
}

func runDir(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.run(func(b *rupy.Bridge) error {
		names, err := listing(b, args[0], dirAll)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	})
}
