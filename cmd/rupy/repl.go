package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/feather-lang/rupy"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read calls from stdin and evaluate them in one runtime",
	Long: `Read one call per line and evaluate it in a single guest runtime.

Each line is a target followed by comma-separated YAML arguments:

  >>> math.pow 2, 10
  1024
  >>> fractions.Fraction 3, 4
  3/4
  >>> dir string

Prompts are printed only when stdin is a terminal.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	in := cmd.InOrStdin()
	return a.run(func(b *rupy.Bridge) error {
		return repl(b, in, cmd.OutOrStdout(), cmd.ErrOrStderr(), isTerminal(in))
	})
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// repl evaluates lines from in until EOF. Errors are reported on errw and
// do not end the loop.
func repl(b *rupy.Bridge, in io.Reader, out, errw io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, ">>> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if module, ok := strings.CutPrefix(line, "dir "); ok {
			names, err := listing(b, strings.TrimSpace(module), false)
			if err != nil {
				fmt.Fprintf(errw, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, strings.Join(names, " "))
			continue
		}
		target, args, err := parseLine(line)
		if err == nil {
			var result string
			if result, err = evaluate(b, target, args); err == nil {
				fmt.Fprintln(out, result)
				continue
			}
		}
		fmt.Fprintf(errw, "error: %v\n", err)
	}
	if prompt {
		fmt.Fprintln(out)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}
