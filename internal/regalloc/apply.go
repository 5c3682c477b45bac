package regalloc

import (
	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/register"
)

// Apply rewrites every virtual-register operand of fn to the physical
// register Allocate chose for it, inserting a reload before any read of
// a spilled register and a store after any write to one. It snapshots
// each block's instruction slice before rewriting, then builds an
// entirely new slice by index so inserted reload/store instructions
// never shift the position of an instruction still to be processed -
// the bug a naive insert-in-place pass runs into once it needs to
// handle more than one spilled operand per instruction.
func Apply(fn *lir.Function, result *Result) {
	fp := register.PhysicalByIndex(register.FP)
	scratch1 := register.PhysicalByIndex(register.Zero)
	scratch2 := register.PhysicalByIndex(scratchSpill)

	for _, b := range fn.Blocks {
		snapshot := b.Insns
		out := make([]lir.Insn, 0, len(snapshot))

		for _, ins := range snapshot {
			reads := ins.Reads()
			w := ins.Write()

			var pre, post []lir.Insn

			nextIdx := 0

			scratchFor := func() register.Register {
				s := scratch1
				if nextIdx%2 == 1 {
					s = scratch2
				}

				nextIdx++

				return s
			}

			aliased := func(r *register.Register) bool { return w != nil && r == w }

			for _, r := range reads {
				if aliased(r) {
					continue
				}

				alloc, ok := result.Allocations[*r]
				if !ok {
					continue
				}

				if alloc.Spilled {
					s := scratchFor()
					pre = append(pre, reloadSeq(fp, s, alloc.SpillSlot)...)
					*r = s
				} else {
					*r = alloc.Physical
				}
			}

			if w != nil {
				alsoRead := false

				for _, r := range reads {
					if aliased(r) {
						alsoRead = true

						break
					}
				}

				if alloc, ok := result.Allocations[*w]; ok {
					if alloc.Spilled {
						s := scratchFor()
						if alsoRead {
							pre = append(pre, reloadSeq(fp, s, alloc.SpillSlot)...)
						}

						post = append(post, storeSeq(fp, s, alloc.SpillSlot, scratch1, scratch2)...)
						*w = s
					} else {
						*w = alloc.Physical
					}
				}
			}

			out = append(out, pre...)
			out = append(out, ins)
			out = append(out, post...)
		}

		b.Insns = out
	}
}

// reloadSeq walks a scratch copy of FP to a spill slot and loads the
// value there, using the same register for the address then the value -
// the same in-place-load idiom LoadParam's lowering already relies on.
func reloadSeq(fp, scratch register.Register, slot int) []lir.Insn {
	return []lir.Insn{
		&lir.Copy{Dst: scratch, Src: fp},
		&lir.Inc{Dst: scratch, Amount: slot},
		&lir.Load{Dst: scratch, Base: scratch},
	}
}

// storeSeq writes valueReg to its spill slot. It needs an address
// register distinct from valueReg, so it picks whichever of the two
// spill scratches valueReg isn't - safe because by the time a write is
// being stored back, any read scratch used earlier in the instruction
// has already been consumed.
func storeSeq(fp, valueReg register.Register, slot int, scratch1, scratch2 register.Register) []lir.Insn {
	addr := scratch1
	if valueReg == scratch1 {
		addr = scratch2
	}

	return []lir.Insn{
		&lir.Copy{Dst: addr, Src: fp},
		&lir.Inc{Dst: addr, Amount: slot},
		&lir.Store{Base: addr, Src: valueReg},
	}
}
