package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/alecthomas/kong"

	"github.com/inngest/filter"
)

// Context holds the global flags shared by every command.
type Context struct {
	Operators string
	MaxDepth  int
	Strict    bool
	Logger    *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
}

// Input is the filter argument shared by the render commands.
type Input struct {
	File string `arg:"" optional:"" type:"existingfile" help:"JSON filter file, read from stdin if omitted"`
}

// TreeCmd prints the expression tree.
type TreeCmd struct {
	Input
}

func (cmd *TreeCmd) Run(ctx *Context) error {
	expr, err := build(ctx, cmd.File)
	if err != nil {
		return err
	}
	if expr == nil {
		fmt.Fprintln(ctx.Stdout, "<no expression>")
		return nil
	}
	fmt.Fprintln(ctx.Stdout, expr.String())
	return nil
}

// SQLCmd prints a SQL WHERE clause body and its arguments.
type SQLCmd struct {
	Input
	Dollar bool `help:"Use $n placeholders instead of ?"`
}

func (cmd *SQLCmd) Run(ctx *Context) error {
	expr, err := build(ctx, cmd.File)
	if err != nil {
		return err
	}

	opts := []filter.SQLOption{}
	if cmd.Dollar {
		opts = append(opts, filter.WithPlaceholder(sq.Dollar))
	}

	query, args, err := filter.ToSQL(expr, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, query)
	for n, a := range args {
		fmt.Fprintf(ctx.Stdout, "  %d: %#v\n", n+1, a)
	}
	return nil
}

// CELCmd prints a CEL expression.
type CELCmd struct {
	Input
}

func (cmd *CELCmd) Run(ctx *Context) error {
	expr, err := build(ctx, cmd.File)
	if err != nil {
		return err
	}
	src, err := filter.CEL(expr)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, src)
	return nil
}

// OperatorsCmd lists the operator table.
type OperatorsCmd struct{}

func (cmd *OperatorsCmd) Run(ctx *Context) error {
	reg, err := registry(ctx)
	if err != nil {
		return err
	}
	for _, op := range reg.Operators() {
		fmt.Fprintf(ctx.Stdout, "%-10s %-10s %s\n", op.Name, op.Symbol, op.Kind)
	}
	return nil
}

type CLI struct {
	Operators string `help:"YAML operator table" type:"existingfile"`
	MaxDepth  int    `help:"Maximum filter nesting depth" default:"32"`
	Strict    bool   `help:"Fail on invalid filter shapes instead of ignoring them"`
	Verbose   bool   `help:"Enable debug logging" short:"v"`

	Tree TreeCmd      `cmd:"" default:"withargs" help:"Print the expression tree"`
	SQL  SQLCmd       `cmd:"" name:"sql" help:"Render the filter as a SQL condition"`
	CEL  CELCmd       `cmd:"" name:"cel" help:"Render the filter as a CEL expression"`
	Ops  OperatorsCmd `cmd:"" name:"operators" help:"List known operators"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("filterexpr"),
		kong.Description("Build expression trees from JSON filter arguments."),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err := kctx.Run(&Context{
		Operators: cli.Operators,
		MaxDepth:  cli.MaxDepth,
		Strict:    cli.Strict,
		Logger:    logger,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
	})
	kctx.FatalIfErrorf(err)
}

func registry(ctx *Context) (*filter.Registry, error) {
	if ctx.Operators == "" {
		return filter.DefaultRegistry(), nil
	}
	f, err := os.Open(ctx.Operators)
	if err != nil {
		return nil, fmt.Errorf("failed to open operator table: %w", err)
	}
	defer f.Close()
	return filter.LoadRegistry(f)
}

func build(ctx *Context, file string) (filter.Expression, error) {
	reg, err := registry(ctx)
	if err != nil {
		return nil, err
	}

	var data []byte
	if file == "" {
		data, err = io.ReadAll(ctx.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("empty filter")
	}

	b := filter.NewBuilder(
		filter.WithClassifier(reg),
		filter.WithMaxDepth(ctx.MaxDepth),
		filter.WithStrict(ctx.Strict),
		filter.WithLogger(ctx.Logger),
	)
	return filter.BuildJSON(context.Background(), b, data)
}
