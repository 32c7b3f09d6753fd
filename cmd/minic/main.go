package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/minic-lang/minic/pkg/asmgen"
	"github.com/minic-lang/minic/pkg/ast"
	"github.com/minic-lang/minic/pkg/cfg"
	"github.com/minic-lang/minic/pkg/lexer"
	"github.com/minic-lang/minic/pkg/opt"
	"github.com/minic-lang/minic/pkg/parser"
	"github.com/minic-lang/minic/pkg/tacgen"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dParse bool
	dTAC   bool
	dCFG   bool
	dOpt   bool
	noOpt  bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the flags that accept single-dash style for
// compiler-driver compatibility.
var debugFlagNames = []string{"dparse", "dtac", "dcfg", "dopt"}

// normalizeFlags converts single-dash debug flags like -dtac to --dtac
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "minic [file]",
		Short: "minic compiles a C subset to assembly for a 16-register machine",
		Long: `minic is a small compiler for a C subset (integers, characters,
pointers, arrays, structs, functions, control flow, I/O). It lowers the
program to three-address code, optimizes per basic block, and emits
assembly on standard output.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			return compile(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dParse, "dparse", false, "Dump the AST after parsing")
	rootCmd.Flags().BoolVar(&dTAC, "dtac", false, "Dump the three-address code")
	rootCmd.Flags().BoolVar(&dCFG, "dcfg", false, "Dump basic blocks and control-flow edges")
	rootCmd.Flags().BoolVar(&dOpt, "dopt", false, "Dump the three-address code after optimization")
	rootCmd.Flags().BoolVar(&noOpt, "no-opt", false, "Skip the optimizer")

	return rootCmd
}

// parseFile reads and parses a source file, returning the AST.
func parseFile(filename string, errOut io.Writer) (*ast.Program, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		err = errors.Wrapf(err, "cannot open %s", filename)
		fmt.Fprintf(errOut, "minic: %v\n", err)
		return nil, err
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	program := p.ParseProgram()

	if len(p.Errors()) > 0 {
		for _, e := range p.Errors() {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, errors.Errorf("parsing failed with %d errors", len(p.Errors()))
	}
	return program, nil
}

func compile(filename string, out, errOut io.Writer) error {
	program, err := parseFile(filename, errOut)
	if err != nil {
		return err
	}

	if dParse {
		printer := ast.NewPrinter(out)
		printer.PrintProgram(program)
		return nil
	}

	gen := tacgen.New(errOut)
	tr := tacgen.NewTranslator(gen)
	tr.Translate(program)

	if dTAC {
		gen.Print(out)
		return nil
	}

	if !noOpt {
		optimizer := opt.New(gen.First(), errOut)
		gen.SetFirst(optimizer.Optimize())
	}

	if dOpt {
		gen.Print(out)
		return nil
	}

	if dCFG {
		builder := cfg.NewBuilder(gen.First())
		builder.Build()
		builder.Print(out)
		return nil
	}

	ag := asmgen.New(out, errOut, gen.First(), gen.Globals())
	if err := ag.Generate(); err != nil {
		return err
	}
	return nil
}
