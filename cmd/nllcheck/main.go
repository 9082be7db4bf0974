// Command nllcheck parses and borrow-checks one or more NLL input
// files, printing one result line per file.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/nikomatsakis/borrowck/internal/driver"
	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/parseir"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the real entry point, kept separate from main so every code
// path returns through the same error-mapping logic.
func run() error {
	dominators := flag.Bool("dominators", false, "Print each function's dominator tree to stdout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nllcheck [flags] <input> [input...]\n\n")
		fmt.Fprintf(os.Stderr, "Parses and borrow-checks one or more NLL input files.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return fmt.Errorf("expected at least 1 input file")
	}
	paths := flag.Args()

	verbose := os.Getenv("DEBUG") != ""
	colorize := isatty.IsTerminal(os.Stdout.Fd())

	results := make([]string, len(paths))
	failed := make([]bool, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			var trace bytes.Buffer
			ok, msg := checkFile(path, &trace, verbose, *dominators)
			if verbose {
				os.Stderr.Write(trace.Bytes())
			}
			failed[i] = !ok
			results[i] = formatResult(path, ok, msg, colorize)
			return nil
		})
	}
	_ = g.Wait()

	for _, line := range results {
		fmt.Println(line)
	}

	for _, f := range failed {
		if f {
			return fmt.Errorf("one or more inputs failed")
		}
	}
	return nil
}

// checkFile parses and checks a single input, returning whether it
// passed and a one-line message describing the outcome.
func checkFile(path string, trace *bytes.Buffer, verbose, printDominators bool) (bool, string) {
	f, err := os.Open(path)
	if err != nil {
		return false, err.Error()
	}
	defer f.Close()

	fn, err := parseir.Parse(f, path)
	if err != nil {
		return false, err.Error()
	}

	tracer := driver.NewTracer(trace, path, verbose)
	result, err := driver.Check(fn, tracer)
	if err != nil {
		return false, err.Error()
	}

	if printDominators {
		if e, derr := env.New(fn); derr == nil {
			printDominatorTree(os.Stdout, path, e)
		}
	}

	if !result.OK() {
		msgs := make([]string, len(result.Failures))
		for i, d := range result.Failures {
			msgs[i] = d.String()
		}
		return false, joinSemicolon(msgs)
	}
	return true, "OK"
}

func formatResult(path string, ok bool, msg string, colorize bool) string {
	if !colorize {
		return fmt.Sprintf("%s: %s", path, msg)
	}
	const (
		green = "\x1b[32m"
		red   = "\x1b[31m"
		reset = "\x1b[0m"
	)
	if ok {
		return fmt.Sprintf("%s: %sOK%s", path, green, reset)
	}
	return fmt.Sprintf("%s: %s%s%s", path, red, msg, reset)
}

// printDominatorTree prints e's dominator tree depth-first, children
// sorted by node index for deterministic output.
func printDominatorTree(w *os.File, path string, e *env.Environment) {
	fmt.Fprintf(w, "%s: dominator tree\n", path)
	var walk func(n, depth int)
	walk = func(n, depth int) {
		fmt.Fprintf(w, "%*s%s\n", depth*2, "", e.Graph.BlockName(n))
		children := append([]int(nil), e.DomTree.Children(n)...)
		sort.Ints(children)
		for _, c := range children {
			walk(c, depth+1)
		}
	}
	walk(e.DomTree.Root(), 0)
}

func joinSemicolon(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
