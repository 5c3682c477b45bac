// Package liveness computes, for a renumbered LIR function, which
// registers are live across each basic block boundary and builds the
// per-register interval list register allocation colors against.
package liveness

import (
	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/register"
)

type regSet = map[register.Register]bool

// Sets holds the four classic liveness sets, one per block.
type Sets struct {
	Use map[*lir.BasicBlock]regSet
	Def map[*lir.BasicBlock]regSet
	In  map[*lir.BasicBlock]regSet
	Out map[*lir.BasicBlock]regSet
}

// Compute runs the local scan followed by the global liveIn/liveOut
// fixpoint, iterating blocks in reverse order each round until a full
// pass leaves every set unchanged.
func Compute(fn *lir.Function) *Sets {
	s := &Sets{
		Use: make(map[*lir.BasicBlock]regSet),
		Def: make(map[*lir.BasicBlock]regSet),
		In:  make(map[*lir.BasicBlock]regSet),
		Out: make(map[*lir.BasicBlock]regSet),
	}

	for _, b := range fn.Blocks {
		use, def := regSet{}, regSet{}

		for _, ins := range b.Insns {
			for _, r := range ins.Reads() {
				if !def[*r] {
					use[*r] = true
				}
			}

			if w := ins.Write(); w != nil {
				def[*w] = true
			}
		}

		s.Use[b] = use
		s.Def[b] = def
		s.In[b] = regSet{}
		s.Out[b] = regSet{}
	}

	for changed := true; changed; {
		changed = false

		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			b := fn.Blocks[i]

			out := regSet{}
			for _, succ := range b.Succs {
				for r := range s.In[succ] {
					out[r] = true
				}
			}

			in := regSet{}
			for r := range out {
				if !s.Def[b][r] {
					in[r] = true
				}
			}

			for r := range s.Use[b] {
				in[r] = true
			}

			if !sameSet(in, s.In[b]) || !sameSet(out, s.Out[b]) {
				changed = true
			}

			s.In[b] = in
			s.Out[b] = out
		}
	}

	return s
}

func sameSet(a, b regSet) bool {
	if len(a) != len(b) {
		return false
	}

	for r := range a {
		if !b[r] {
			return false
		}
	}

	return true
}

// Intervals builds one Interval per register touched by fn, scanning
// each block's instructions backward from its liveOut set. Only
// virtual registers are useful to register allocation, but intervals
// are built for every register encountered so liveness around fixed
// physical registers (RV, SP, FP) can still be inspected.
func Intervals(fn *lir.Function, sets *Sets) map[register.Register]*Interval {
	out := make(map[register.Register]*Interval)

	get := func(r register.Register) *Interval {
		iv, ok := out[r]
		if !ok {
			iv = &Interval{}
			out[r] = iv
		}

		return iv
	}

	for _, b := range fn.Blocks {
		if len(b.Insns) == 0 {
			continue
		}

		blockStart := b.Insns[0].ID()
		blockEnd := b.Insns[len(b.Insns)-1].ID()

		live := regSet{}
		for r := range sets.Out[b] {
			live[r] = true
			get(r).AddRange(Range{Start: blockStart, Stop: blockEnd}, lir.RenumberGap)
		}

		for i := len(b.Insns) - 1; i >= 0; i-- {
			ins := b.Insns[i]
			id := ins.ID()

			if w := ins.Write(); w != nil {
				iv := get(*w)
				iv.AddRange(Range{Start: blockStart, Stop: id}, lir.RenumberGap)
				iv.FirstRangeFrom(id)
				iv.AddUsePosition(id, Write)
				delete(live, *w)
			}

			for _, r := range ins.Reads() {
				iv := get(*r)
				iv.AddRange(Range{Start: blockStart, Stop: id}, lir.RenumberGap)
				iv.AddUsePosition(id, Read)
				live[*r] = true
			}
		}
	}

	return out
}
