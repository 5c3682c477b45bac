// Package pipeline wires together one method's compilation, from its
// decoded bytecode through to an allocated LIR function ready for
// internal/emit, mirroring the order NEmitter's constructor drives its
// per-method passes in: decode, build the CFG, build HIR, lower to LIR,
// renumber, compute liveness, allocate, apply.
package pipeline

import (
	"fmt"
	"io"

	"github.com/iota-lang/minic/internal/cfg"
	"github.com/iota-lang/minic/internal/classfile"
	"github.com/iota-lang/minic/internal/diagnostics"
	"github.com/iota-lang/minic/internal/hir"
	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/liveness"
	"github.com/iota-lang/minic/internal/regalloc"
	"github.com/iota-lang/minic/internal/register"
	"github.com/iota-lang/minic/internal/tuple"
)

// Strategy selects how a method's virtual registers are assigned
// physical homes.
type Strategy string

const (
	Naive Strategy = "naive"
	Graph Strategy = "graph"
)

// spillBase is where a function's spill slots start, FP-relative. Any
// non-negative value works: parameters live at negative FP offsets and
// the saved RA/FP pair is pushed onto the stack proper rather than
// addressed as a slot, so neither can alias a spill slot regardless of
// where spilling starts counting from.
const spillBase = 0

// CompileMethod runs one method through the full pipeline and returns
// its allocated LIR, ready for internal/emit. It reports a diagnostic
// and returns a nil function, rather than an error, for any failure -
// matching §7's recovery policy that one method's failure must not
// stop the rest of the class file from compiling.
func CompileMethod(m *classfile.Method, resolver tuple.MethodResolver, strategy Strategy, diag *diagnostics.Manager, verbose bool, out io.Writer) *lir.Function {
	tuples, err := tuple.Decode(m.Code, resolver)
	if err != nil {
		diag.Add(diagnostics.MalformedBytecodeError(m.Name, "%s", err))

		return nil
	}

	if verbose {
		dumpSection(out, "TUPLES", func(w io.Writer) {
			for _, t := range tuples {
				fmt.Fprintf(w, "  %s\n", t)
			}
		})
	}

	graph, err := cfg.Build(m.Name, tuples)
	if err != nil {
		diag.Add(diagnostics.NewBuilder().In(diagnostics.UnreachableTarget).ForMethod(m.Name).Messagef("%s", err).Build())

		return nil
	}

	hfn, err := hir.Build(m.Name, graph, classfile.ParamCount(m.Descriptor), m.MaxLocals)
	if err != nil {
		diag.Add(diagnostics.MalformedBytecodeError(m.Name, "%s", err))

		return nil
	}

	if verbose {
		dumpSection(out, "HIR", func(w io.Writer) { dumpHIR(w, hfn) })
	}

	pool := register.NewPool()
	lfn := hir.Lower(hfn, pool)
	lfn.Descriptor = m.Descriptor
	lfn.Renumber()

	if verbose {
		dumpSection(out, "LIR", func(w io.Writer) { dumpLIR(w, lfn) })
	}

	sets := liveness.Compute(lfn)
	intervals := liveness.Intervals(lfn, sets)

	if verbose {
		dumpSection(out, "Liveness Sets", func(w io.Writer) { dumpLivenessSets(w, lfn, sets) })
		dumpSection(out, "Liveness Intervals", func(w io.Writer) { dumpIntervals(w, intervals) })
	}

	var result *regalloc.Result

	switch strategy {
	case Naive:
		result = regalloc.AllocateNaive(intervals, spillBase)
	default:
		result, err = regalloc.Allocate(intervals, spillBase)
		if err != nil {
			diag.Add(diagnostics.AllocationFailureError(m.Name, err.Error()))

			return nil
		}
	}

	regalloc.Apply(lfn, result)

	return lfn
}

// CompileFile runs every non-IO method of f through CompileMethod and
// hands the survivors to internal/emit, producing the text this
// backend writes to its output file. A method that failed is simply
// absent from the output; diag already recorded why.
func CompileFile(f *classfile.File, strategy Strategy, verbose bool, out io.Writer, emitAll func([]*lir.Function) (string, error)) (string, *diagnostics.Manager) {
	diag := diagnostics.NewManager()

	var fns []*lir.Function

	for i := range f.Methods {
		m := &f.Methods[i]
		if m.IsIO() {
			continue
		}

		fn := CompileMethod(m, f, strategy, diag, verbose, out)
		if fn != nil {
			fns = append(fns, fn)
		}
	}

	text, err := emitAll(fns)
	if err != nil {
		diag.Add(diagnostics.IOErrorDiagnostic("%s", err))

		return "", diag
	}

	return text, diag
}

func dumpSection(w io.Writer, title string, body func(io.Writer)) {
	fmt.Fprintf(w, "[[ %s ]]\n", title)
	body(w)
}

func dumpHIR(w io.Writer, fn *hir.Function) {
	for _, blk := range fn.Graph.Blocks {
		fmt.Fprintf(w, "  %s:\n", blk)

		for _, phi := range fn.BlockPhis[blk] {
			fmt.Fprintf(w, "    %s\n", phi)
		}

		for _, ins := range fn.BlockInsns[blk] {
			fmt.Fprintf(w, "    %d: %s\n", ins.ID(), ins.Op())
		}
	}
}

func dumpLIR(w io.Writer, fn *lir.Function) {
	for _, blk := range fn.Blocks {
		fmt.Fprintf(w, "  %s:\n", blk.Label)

		for _, ins := range blk.Insns {
			fmt.Fprintf(w, "    %s\n", ins)
		}
	}
}

func dumpLivenessSets(w io.Writer, fn *lir.Function, sets *liveness.Sets) {
	regs := func(s map[register.Register]bool) string {
		out := ""

		for r := range s {
			if out != "" {
				out += ", "
			}

			out += r.String()
		}

		return out
	}

	for _, blk := range fn.Blocks {
		fmt.Fprintf(w, "  %s: use={%s} def={%s} in={%s} out={%s}\n",
			blk.Label, regs(sets.Use[blk]), regs(sets.Def[blk]), regs(sets.In[blk]), regs(sets.Out[blk]))
	}
}

func dumpIntervals(w io.Writer, intervals map[register.Register]*liveness.Interval) {
	for r, iv := range intervals {
		fmt.Fprintf(w, "  %s: %s\n", r, iv)
	}
}
