// Command rasm is the two-pass assembler driver of spec §6.4: reads a
// source file, runs it through internal/lexer -> internal/program ->
// internal/resolver, and writes the resulting byte image. Argument parsing
// is the one permitted "external collaborator" surface (spec §1's
// out-of-scope list); everything interesting lives in the packages it
// calls. Grounded on the teacher's top-level assembler.go main, generalized
// from positional stdin/stdout piping to named -i/-o flags per spec §6.4.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"

	"github.com/chominskid/retro16/internal/catalog"
	"github.com/chominskid/retro16/internal/lexer"
	"github.com/chominskid/retro16/internal/program"
	"github.com/chominskid/retro16/internal/resolver"
)

// einval is the exit code spec §6.4 mandates for missing/duplicate
// arguments.
const einval = 22

// dedupFlag rejects a second occurrence of a logical flag that the stdlib
// flag package would otherwise silently let overwrite the first (spec §6.4:
// EINVAL on a duplicate argument, confirmed against the original source's
// explicit "already specified" check). count is shared between a flag's
// short and long spellings (e.g. -i and --input) so either combination of
// the two counts as the same logical flag.
type dedupFlag struct {
	value *string
	count *int
}

func (f *dedupFlag) String() string {
	if f.value == nil {
		return ""
	}
	return *f.value
}

func (f *dedupFlag) Set(s string) error {
	*f.count++
	if *f.count > 1 {
		return fmt.Errorf("already specified")
	}
	*f.value = s
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("rasm", flag.ContinueOnError)
	var input, output string
	var inputCount, outputCount int
	var verbose bool
	fs.Var(&dedupFlag{&input, &inputCount}, "i", "input source path")
	fs.Var(&dedupFlag{&input, &inputCount}, "input", "input source path")
	fs.Var(&dedupFlag{&output, &outputCount}, "o", "output binary path")
	fs.Var(&dedupFlag{&output, &outputCount}, "output", "output binary path")
	fs.BoolVar(&verbose, "v", false, "trace resolver passes to stderr")
	fs.BoolVar(&verbose, "verbose", false, "trace resolver passes to stderr")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return einval
	}
	if input == "" || output == "" {
		fmt.Fprintln(os.Stderr, "rasm: -i/--input and -o/--output are both required")
		return einval
	}

	src, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rasm:", err)
		return 1
	}

	var trace resolver.Tracer
	if verbose {
		trace = func(format string, a ...any) {
			pp.Fprintf(os.Stderr, format+"\n", a...)
		}
	}

	out, err := assemble(string(src), trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rasm:", err)
		return 1
	}

	if err := os.WriteFile(output, out, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "rasm:", err)
		return 1
	}
	if verbose {
		pp.Fprintf(os.Stderr, "assembled %v bytes\n", len(out))
	}
	return 0
}

func assemble(src string, trace resolver.Tracer) ([]byte, error) {
	statements, labels, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	prog, err := program.Build(statements, labels, catalog.New())
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(prog, trace)
}
