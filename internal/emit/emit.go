// Package emit turns an allocated LIR function into the target
// machine's text form: one line per instruction, a fixed-width mnemonic
// and operand layout, and a trailing comment spelling out what the line
// does. It lays every function out into a single flat program counter
// space so a call can address a method defined anywhere in the module,
// forward or back.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/register"
)

// lineFormat mirrors the target machine's own instruction printer:
// program counter, mnemonic, three operand columns, then a comment.
const lineFormat = "%-6d%-8s%-8s%-8s%-8s# %s\n"

// job is one not-yet-printed line. A Jump/CondJump/Call's target slot
// is left unresolved until every function in the program has been laid
// out, since a call may address a method that appears later in the
// module than its caller.
type job struct {
	pc        int
	mnemonic  string
	cols      [3]string
	targetCol int
	jumpTo    *lir.BasicBlock
	callTo    string
	comment   string
}

// Emit lays out fns into one program and renders it as text, with a
// frame-pointer save/restore synthesized around each function's body
// and every jump, branch and call resolved to an absolute line number.
func Emit(fns []*lir.Function) (string, error) {
	blockPC := make(map[*lir.BasicBlock]int)
	methodPC := make(map[string]int)

	var program [][]job

	pc := 0
	for _, fn := range fns {
		methodPC[fn.Name] = pc
		jobs := buildJobs(fn, blockPC, &pc)
		program = append(program, jobs)
	}

	var out strings.Builder

	for i, jobs := range program {
		fmt.Fprintf(&out, "# %s %s\n", fns[i].Name, fns[i].Descriptor)

		for _, j := range jobs {
			switch {
			case j.jumpTo != nil:
				j.cols[j.targetCol] = fmt.Sprintf("%d", blockPC[j.jumpTo])
			case j.callTo != "":
				to, ok := methodPC[j.callTo]
				if !ok {
					return "", fmt.Errorf("emit: call to unknown method %q", j.callTo)
				}

				j.cols[j.targetCol] = fmt.Sprintf("%d", to)
			}

			fmt.Fprintf(&out, lineFormat, j.pc, j.mnemonic, j.cols[0], j.cols[1], j.cols[2], j.comment)
		}
	}

	return out.String(), nil
}

// buildJobs lowers one function's blocks into jobs, threading the
// shared program counter through so every function's addresses land
// consecutively in the flat program space. The prologue pushes RA, FP
// and every callee-saved register this function's body actually colors
// onto SP, then captures that SP as the new FP; the epilogue pops the
// same registers in reverse before jumping back through RA.
func buildJobs(fn *lir.Function, blockPC map[*lir.BasicBlock]int, pc *int) []job {
	var jobs []job

	emit := func(mnemonic string, c0, c1, c2, comment string) {
		jobs = append(jobs, job{pc: *pc, mnemonic: mnemonic, cols: [3]string{c0, c1, c2}, targetCol: -1, comment: comment})
		*pc++
	}

	emitTarget := func(mnemonic string, c0, c1, c2 string, targetCol int, jumpTo *lir.BasicBlock, callTo string, comment string) {
		jobs = append(jobs, job{
			pc: *pc, mnemonic: mnemonic, cols: [3]string{c0, c1, c2},
			targetCol: targetCol, jumpTo: jumpTo, callTo: callTo, comment: comment,
		})
		*pc++
	}

	fp := register.PhysicalByIndex(register.FP).String()
	sp := register.PhysicalByIndex(register.SP).String()
	ra := register.PhysicalByIndex(register.RA).String()

	saved := usedRegisters(fn)
	savedStr := make([]string, len(saved))
	for i, r := range saved {
		savedStr[i] = r.String()
	}

	prologue := func() {
		emit("pushr", ra, sp, "", fmt.Sprintf("mem[%s++] = %s", sp, ra))
		emit("pushr", fp, sp, "", fmt.Sprintf("mem[%s++] = %s", sp, fp))
		emit("copy", fp, sp, "", fmt.Sprintf("%s = %s", fp, sp))

		for _, r := range savedStr {
			emit("pushr", r, sp, "", fmt.Sprintf("mem[%s++] = %s", sp, r))
		}
	}

	epilogue := func() {
		for i := len(savedStr) - 1; i >= 0; i-- {
			emit("popr", savedStr[i], sp, "", fmt.Sprintf("%s = mem[--%s]", savedStr[i], sp))
		}

		emit("popr", fp, sp, "", fmt.Sprintf("%s = mem[--%s]", fp, sp))
		emit("popr", ra, sp, "", fmt.Sprintf("%s = mem[--%s]", ra, sp))
	}

	for i, blk := range fn.Blocks {
		if i == 0 {
			prologue()
		}

		blockPC[blk] = *pc

		for _, ins := range blk.Insns {
			switch v := ins.(type) {
			case *lir.IntConst:
				dst := v.Dst.String()
				emit(v.Op(), dst, fmt.Sprintf("%d", v.Value), "", fmt.Sprintf("%s = %d", dst, v.Value))

			case *lir.Arithmetic:
				dst, lhs, rhs := v.Dst.String(), v.LHS.String(), v.RHS.String()
				emit(v.Op(), dst, lhs, rhs, fmt.Sprintf("%s = %s %s %s", dst, lhs, v.Mnemonic, rhs))

			case *lir.Copy:
				dst, src := v.Dst.String(), v.Src.String()
				emit(v.Op(), dst, src, "", fmt.Sprintf("%s = %s", dst, src))

			case *lir.Inc:
				dst := v.Dst.String()
				emit(v.Op(), dst, fmt.Sprintf("%d", v.Amount), "", fmt.Sprintf("%s += %d", dst, v.Amount))

			case *lir.Load:
				dst, base := v.Dst.String(), v.Base.String()
				emit(v.Op(), dst, base, "", fmt.Sprintf("%s = mem[%s]", dst, base))

			case *lir.Store:
				src, base := v.Src.String(), v.Base.String()
				emit(v.Op(), src, base, "", fmt.Sprintf("mem[%s] = %s", base, src))

			case *lir.Push:
				val, addr := v.Value.String(), v.Addr.String()
				emit(v.Op(), val, addr, "", fmt.Sprintf("mem[%s++] = %s", addr, val))

			case *lir.Pop:
				dst, addr := v.Dst.String(), v.Addr.String()
				emit(v.Op(), dst, addr, "", fmt.Sprintf("%s = mem[--%s]", dst, addr))

			case *lir.Jump:
				emitTarget(v.Op(), "", "", "", 0, v.Target, "", fmt.Sprintf("goto %s", v.Target.Label))

			case *lir.CondJump:
				lhs, rhs := v.LHS.String(), v.RHS.String()
				emitTarget(v.Op(), lhs, rhs, "", 2, v.True, "",
					fmt.Sprintf("if %s %s %s goto %s else goto %s", lhs, v.Cmp, rhs, v.True.Label, v.False.Label))
				emitTarget("jumpr", "", "", "", 0, v.False, "", fmt.Sprintf("goto %s", v.False.Label))

			case *lir.Call:
				emitTarget(v.Op(), v.RA.String(), "", "", 1, nil, v.Name, fmt.Sprintf("call %s", v.Name))

			case *lir.Return:
				epilogue()
				emit(v.Op(), ra, "", "", fmt.Sprintf("jump to %s", ra))

			case *lir.Read:
				dst := v.Dst.String()
				emit(v.Op(), dst, "", "", fmt.Sprintf("%s = read()", dst))

			case *lir.Write:
				src := v.Src.String()
				emit(v.Op(), src, "", "", fmt.Sprintf("write(%s)", src))

			default:
				panic(fmt.Sprintf("emit: unhandled instruction %T", v))
			}
		}
	}

	return jobs
}

// usedRegisters returns, in ascending index order, every physical
// register this function's body writes that the allocator could have
// colored a value into - excluding the fixed-role registers and the
// scratch register spill-fixup code borrows, neither of which needs
// saving across a call. These are exactly the registers the prologue
// and epilogue push and pop.
func usedRegisters(fn *lir.Function) []register.Register {
	seen := make(map[register.Register]bool)

	for _, blk := range fn.Blocks {
		for _, ins := range blk.Insns {
			w := ins.Write()
			if w == nil {
				continue
			}

			r := *w
			if !r.IsPhysical() || register.IsReserved(r.Index) || r.Index == register.T11 {
				continue
			}

			seen[r] = true
		}
	}

	out := make([]register.Register, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out
}
