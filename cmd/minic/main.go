// Command minic drives the bytecode-to-assembly backend: it loads a
// class-file view, compiles every non-IO method through
// internal/pipeline, and writes the resulting assembly to the
// destination directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/iota-lang/minic/internal/classfile"
	"github.com/iota-lang/minic/internal/emit"
	"github.com/iota-lang/minic/internal/output"
	"github.com/iota-lang/minic/internal/pipeline"
	"github.com/iota-lang/minic/internal/watch"
)

func main() {
	var (
		destDir  = flag.String("dest", ".", "destination directory for the emitted assembly")
		strategy = flag.String("strategy", "graph", "register-allocation strategy: naive|graph")
		verbose  = flag.Bool("verbose", false, "dump tuples, HIR, LIR, liveness sets and intervals to stdout")
		watchIn  = flag.Bool("watch", false, "watch the source file and recompile on every write")
	)

	flag.Parse()

	if *strategy != string(pipeline.Naive) && *strategy != string(pipeline.Graph) {
		fmt.Fprintf(os.Stderr, "Error: unknown strategy %q (want naive or graph)\n", *strategy)
		showUsage()
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one source-file path is required")
		showUsage()
		os.Exit(1)
	}

	sourceFile := args[0]

	if hasErrors, err := compileOnce(sourceFile, *destDir, pipeline.Strategy(*strategy), *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	} else if hasErrors {
		os.Exit(1)
	}

	if *watchIn {
		runWatch(sourceFile, *destDir, pipeline.Strategy(*strategy), *verbose)
	}
}

func showUsage() {
	fmt.Println("minic - bytecode-to-assembly backend")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    minic [OPTIONS] <SOURCE_FILE>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -dest DIR        destination directory for the emitted assembly")
	fmt.Println("    -strategy NAME   register-allocation strategy: naive|graph")
	fmt.Println("    -verbose         dump tuples, HIR, LIR, liveness sets and intervals")
	fmt.Println("    -watch           recompile whenever the source file is written")
}

func compileOnce(sourceFile, destDir string, strategy pipeline.Strategy, verbose bool) (hasErrors bool, err error) {
	f, err := classfile.Load(sourceFile)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", sourceFile, err)
	}

	text, diag := pipeline.CompileFile(f, strategy, verbose, os.Stdout, emit.Emit)

	diag.WriteTo(os.Stderr)

	destPath := filepath.Join(destDir, outputName(sourceFile))
	if err := output.Write(destPath, []byte(text)); err != nil {
		return diag.HasErrors(), err
	}

	return diag.HasErrors(), nil
}

func outputName(sourceFile string) string {
	base := filepath.Base(sourceFile)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	return base + ".s"
}

func runWatch(sourceFile, destDir string, strategy pipeline.Strategy, verbose bool) {
	w, err := watch.New(sourceFile)
	if err != nil {
		log.Fatalf("watch: %v", err)
	}

	defer w.Close()

	fmt.Fprintf(os.Stderr, "watching %s for changes...\n", sourceFile)

	for range w.Events() {
		if _, err := compileOnce(sourceFile, destDir, strategy, verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}
}
