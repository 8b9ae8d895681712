package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feather-lang/rupy"
)

var callCmd = &cobra.Command{
	Use:   "call <module.name> [args...]",
	Short: "Call a guest function and print the result",
	Long: `Call a guest function, class or builtin and print the result as YAML.

Examples:
  # Square root from the math module
  rupy call math.sqrt 16

  # Builtins need no module
  rupy call len "[1, 2, 3]"

  # Classes are called to build instances
  rupy call fractions.Fraction 1 2

  # Attributes that are not callable are printed as-is
  rupy call string.digits`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	callArgs, err := parseArgs(args[1:])
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.run(func(b *rupy.Bridge) error {
		out, err := evaluate(b, args[0], callArgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	})
}
