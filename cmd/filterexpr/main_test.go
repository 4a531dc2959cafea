package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"
)

const scenario = `{"and":[{"age":{"gt":5}},{"name":{"eq":"x"}}]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var cli CLI
	parser, err := kong.New(&cli, kong.Name("filterexpr"), kong.Exit(func(int) {}))
	require.NoError(t, err)

	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}

	out := &bytes.Buffer{}
	err = kctx.Run(&Context{
		Operators: cli.Operators,
		MaxDepth:  cli.MaxDepth,
		Strict:    cli.Strict,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Stdin:     strings.NewReader(stdin),
		Stdout:    out,
	})
	return out.String(), err
}

func TestTree(t *testing.T) {
	t.Run("It reads stdin by default", func(t *testing.T) {
		out, err := run(t, scenario)
		require.NoError(t, err)
		require.Equal(t, "(age > 5 && name == \"x\")\n", out)
	})

	t.Run("It reads files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "filter.json")
		require.NoError(t, os.WriteFile(path, []byte(scenario), 0o600))

		out, err := run(t, "", "tree", path)
		require.NoError(t, err)
		require.Equal(t, "(age > 5 && name == \"x\")\n", out)
	})

	t.Run("It reports filters without an expression", func(t *testing.T) {
		out, err := run(t, `{"a":1,"b":2}`, "tree")
		require.NoError(t, err)
		require.Equal(t, "<no expression>\n", out)
	})

	t.Run("It fails on invalid shapes when strict", func(t *testing.T) {
		_, err := run(t, `{"a":1,"b":2}`, "--strict", "tree")
		require.Error(t, err)
	})

	t.Run("It fails on deep filters", func(t *testing.T) {
		_, err := run(t, scenario, "--max-depth=2", "tree")
		require.Error(t, err)
	})

	t.Run("It fails on empty input", func(t *testing.T) {
		_, err := run(t, "  \n", "tree")
		require.Error(t, err)
	})
}

func TestSQL(t *testing.T) {
	out, err := run(t, scenario, "sql")
	require.NoError(t, err)
	require.Equal(t, "(\"age\" > ? AND \"name\" = ?)\n  1: 5\n  2: \"x\"\n", out)

	out, err = run(t, scenario, "sql", "--dollar")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "(\"age\" > $1 AND \"name\" = $2)\n"))
}

func TestCEL(t *testing.T) {
	out, err := run(t, scenario, "cel")
	require.NoError(t, err)
	require.Equal(t, "(age > 5 && name == \"x\")\n", out)
}

func TestOperators(t *testing.T) {
	t.Run("It lists the default operators", func(t *testing.T) {
		out, err := run(t, "", "operators")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 14)
		require.True(t, strings.HasPrefix(lines[0], "and "))
	})

	t.Run("It loads operator tables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "operators.yaml")
		require.NoError(t, os.WriteFile(path, []byte("operators:\n  - name: like\n    symbol: \"~\"\n    kind: binary\n"), 0o600))

		out, err := run(t, "", "--operators", path, "operators")
		require.NoError(t, err)
		require.Equal(t, "like       ~          binary\n", out)

		out, err = run(t, `{"name":{"like":"a"}}`, "--operators", path, "tree")
		require.NoError(t, err)
		require.Equal(t, "name ~ \"a\"\n", out)
	})
}
