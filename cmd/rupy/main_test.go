package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		configPath = ""
		dirAll = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func session(t *testing.T) *rupy.Bridge {
	t.Helper()
	b := rupy.New()
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
		assert.NotEmpty(t, cmd.Short, cmd.Name())
	}
	for _, want := range []string{"call", "dir", "repl"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, dirCmd.Flags().Lookup("all"))
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"16", "2.5", "hello", "[1, 2]", "{a: 1}", "true", "~"})
	require.NoError(t, err)
	assert.Equal(t, []any{16, 2.5, "hello", []any{1, 2}, map[string]any{"a": 1}, true, nil}, args)

	_, err = parseArgs([]string{"[1, 2"})
	assert.ErrorContains(t, err, `argument "[1, 2"`)
}

func TestParseLine(t *testing.T) {
	target, args, err := parseLine("  math.pow 2, 10 ")
	require.NoError(t, err)
	assert.Equal(t, "math.pow", target)
	assert.Equal(t, []any{2, 10}, args)

	target, args, err = parseLine("string.digits")
	require.NoError(t, err)
	assert.Equal(t, "string.digits", target)
	assert.Empty(t, args)

	_, _, err = parseLine("len [1, 2")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	b := session(t)
	base := b.LiveHandles()

	tests := []struct {
		target string
		args   []any
		want   string
	}{
		{"math.pow", []any{2, 10}, "1024"},
		{"string.upper", []any{"hi"}, "HI"},
		{"len", []any{[]any{1, 2, 3}}, "3"},
		{"fractions.Fraction", []any{3, 4}, "3/4"},
		{"list", []any{[]any{"a", "b"}}, "- a\n- b"},
		{"dict", []any{map[string]any{"k": 1}}, "k: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := evaluate(b, tt.target, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, base, b.LiveHandles(), "evaluate releases every handle it creates")
}

func TestRenderNestedObjects(t *testing.T) {
	b := session(t)
	base := b.LiveHandles()

	err := b.Scope(func(*rupy.Scope) error {
		newFraction, err := b.Type("fractions.Fraction")
		require.NoError(t, err)
		half, err := newFraction(1, 2)
		require.NoError(t, err)

		h, err := b.ToForeign([]any{half, map[any]any{[2]any{1, 2}: half}}, false)
		require.NoError(t, err)
		v, err := b.ToNative(h)
		require.NoError(t, err)

		out, err := render(v)
		require.NoError(t, err)
		assert.NotContains(t, out, "{}")
		assert.Equal(t, []any{"1/2", map[any]any{"(1, 2)": "1/2"}}, printable(v))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, base, b.LiveHandles())
}

func TestEvaluateErrors(t *testing.T) {
	b := session(t)

	_, err := evaluate(b, "nope.thing", nil)
	assert.ErrorContains(t, err, "ImportError: No module named nope")

	_, err = evaluate(b, "math.sqrt", []any{-1})
	assert.ErrorContains(t, err, "ValueError: math domain error")

	_, err = evaluate(b, "math.pi", []any{1})
	assert.ErrorContains(t, err, "math.pi is not callable")

	_, err = evaluate(b, ".pi", nil)
	assert.ErrorContains(t, err, "invalid target")

	var ie *rupy.InterpreterError
	_, err = evaluate(b, "math.missing", nil)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "AttributeError", ie.Kind)
}

func TestListing(t *testing.T) {
	b := session(t)

	names, err := listing(b, "math", false)
	require.NoError(t, err)
	assert.Contains(t, names, "sqrt")
	assert.Contains(t, names, "pi")
	for _, n := range names {
		assert.False(t, strings.HasPrefix(n, "_"), n)
	}

	all, err := listing(b, "math", true)
	require.NoError(t, err)
	assert.Greater(t, len(all), len(names))
}

func TestCallCommand(t *testing.T) {
	out, err := execute(t, "call", "string.upper", "go")
	require.NoError(t, err)
	assert.Equal(t, "GO\n", out)

	_, err = execute(t, "call", "nope.x")
	assert.Error(t, err)
}

func TestDirCommand(t *testing.T) {
	out, err := execute(t, "dir", "string")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), "ascii_letters")
}

func TestLegacyModeFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  legacy_mode: true\nlogging:\n  level: error\n"), 0600))

	out, err := execute(t, "--config", path, "call", "math.floor", "2.5")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestRepl(t *testing.T) {
	b := session(t)
	in := strings.NewReader(`math.pow 2, 10
# comments and blank lines are skipped

nope.x
dir string
string.capwords hello world
`)
	var out, errw bytes.Buffer
	require.NoError(t, repl(b, in, &out, &errw, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1024", lines[0])
	assert.Contains(t, strings.Fields(lines[1]), "digits")
	assert.Equal(t, "Hello World", lines[2])
	assert.Equal(t, "error: import nope: ImportError: No module named nope\n", errw.String())
}

func TestReplPrompts(t *testing.T) {
	b := session(t)
	var out, errw bytes.Buffer
	require.NoError(t, repl(b, strings.NewReader("len [1]\n"), &out, &errw, true))
	assert.Equal(t, ">>> 1\n>>> \n", out.String())
	assert.False(t, isTerminal(strings.NewReader("")))
}

func TestReplCommand(t *testing.T) {
	rootCmd.SetIn(strings.NewReader("string.lower ABC\n"))
	out, err := execute(t, "repl")
	require.NoError(t, err)
	assert.Equal(t, "abc\n", out)
}
