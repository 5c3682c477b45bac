package hir

import (
	"fmt"

	"github.com/iota-lang/minic/internal/cfg"
	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/register"
)

// Lower turns SSA-form HIR into LIR. Every value-producing HIR node
// gets exactly one virtual register, assigned up front so that a phi
// argument coming from a not-yet-lowered successor (a loop back edge)
// still resolves correctly; only the instructions that compute a
// register's value are emitted in per-block program order.
func Lower(fn *Function, pool *register.Pool) *lir.Function {
	out := &lir.Function{Name: fn.Name, ParamSize: fn.ParamCount}

	blockOf := make(map[*cfg.BasicBlock]*lir.BasicBlock, len(fn.Graph.Blocks))
	for _, blk := range fn.Graph.Blocks {
		lb := &lir.BasicBlock{Label: blk.String()}
		blockOf[blk] = lb
		out.Blocks = append(out.Blocks, lb)
	}

	for _, blk := range fn.Graph.Blocks {
		lb := blockOf[blk]

		for _, s := range blk.Successors {
			lb.Succs = append(lb.Succs, blockOf[s])
		}

		for _, p := range blk.Predecessors {
			lb.Preds = append(lb.Preds, blockOf[p])
		}
	}

	valueReg := make(map[int]register.Register)

	for id, node := range fn.Nodes {
		if _, removed := fn.Redirect[id]; removed {
			continue
		}

		switch n := node.(type) {
		case *LoadParam, *IntConst, *Arithmetic, *Phi:
			valueReg[id] = pool.New()
		case *Call:
			if n.ReturnsValue {
				valueReg[id] = pool.New()
			}
		}
	}

	resolveReg := func(id int) register.Register {
		return valueReg[fn.Resolve(id).ID()]
	}

	fp := register.PhysicalByIndex(register.FP)
	sp := register.PhysicalByIndex(register.SP)
	rv := register.PhysicalByIndex(register.RV)

	for _, blk := range fn.Graph.Blocks {
		lb := blockOf[blk]

		for _, node := range fn.BlockInsns[blk] {
			switch v := node.(type) {
			case *LoadParam:
				// The caller pushed this argument before our prologue
				// pushed RA then FP and captured the resulting SP as
				// our own FP, so the i-th argument sits three slots
				// below FP.
				dst := valueReg[v.ID()]
				base := pool.New()
				lb.Insns = append(lb.Insns,
					&lir.Copy{Dst: base, Src: fp},
					&lir.Inc{Dst: base, Amount: -(v.Index + 3)},
					&lir.Load{Dst: dst, Base: base},
				)

			case *IntConst:
				lb.Insns = append(lb.Insns, &lir.IntConst{Dst: valueReg[v.ID()], Value: v.Value})

			case *Arithmetic:
				lb.Insns = append(lb.Insns, &lir.Arithmetic{
					Dst:      valueReg[v.ID()],
					LHS:      resolveReg(v.LHS),
					RHS:      resolveReg(v.RHS),
					Mnemonic: v.Mnemonic,
				})

			case *Jump:
				lb.Insns = append(lb.Insns, &lir.Jump{Target: blockOf[v.Target]})

			case *CondJump:
				lb.Insns = append(lb.Insns, &lir.CondJump{
					Cmp:   v.Cmp,
					LHS:   resolveReg(v.LHS),
					RHS:   resolveReg(v.RHS),
					True:  blockOf[v.True],
					False: blockOf[v.False],
				})

			case *Call:
				lowerCall(lb, v, valueReg, resolveReg, sp)

			case *Return:
				if v.HasValue {
					src := resolveReg(v.Src)
					lb.Insns = append(lb.Insns, &lir.Copy{Dst: rv, Src: src})
					rvCopy := rv
					lb.Insns = append(lb.Insns, &lir.Return{Src: &rvCopy})
				} else {
					lb.Insns = append(lb.Insns, &lir.Return{})
				}

			case *Phi:
				// A phi produces no code of its own; it is resolved
				// below into a Copy appended to each predecessor.

			default:
				panic(fmt.Sprintf("hir: lower: unhandled node %T", v))
			}
		}
	}

	resolvePhis(fn, blockOf, valueReg, resolveReg)

	return out
}

// resolvePhis turns every surviving phi into a Copy appended to each
// of its predecessors - before that block's trailing Jump, if it has
// one, so the copy still runs on every path into the merge block.
func resolvePhis(
	fn *Function,
	blockOf map[*cfg.BasicBlock]*lir.BasicBlock,
	valueReg map[int]register.Register,
	resolveReg func(int) register.Register,
) {
	for blk, phis := range fn.BlockPhis {
		for _, phi := range phis {
			dst := valueReg[phi.ID()]

			for k, pred := range blk.Predecessors {
				src := resolveReg(phi.Args[k])
				if src == dst {
					continue
				}

				predBlock := blockOf[pred]
				cp := &lir.Copy{Dst: dst, Src: src}

				if n := len(predBlock.Insns); n > 0 {
					if _, isJump := predBlock.Insns[n-1].(*lir.Jump); isJump {
						predBlock.Insns = append(predBlock.Insns[:n-1], cp, predBlock.Insns[n-1])

						continue
					}
				}

				predBlock.Insns = append(predBlock.Insns, cp)
			}
		}
	}
}

// lowerCall pushes each argument onto SP in reverse order, calls, then
// reclaims the pushed slots with a single Inc. The callee's prologue
// pushes RA then FP on top of them before capturing the result as its
// own FP, which is what makes LoadParam's FP-(i+3) addressing line up.
func lowerCall(lb *lir.BasicBlock, v *Call, valueReg map[int]register.Register, resolveReg func(int) register.Register, sp register.Register) {
	if v.IsIO {
		switch v.Name {
		case "read":
			lb.Insns = append(lb.Insns, &lir.Read{Dst: valueReg[v.ID()]})
		case "write":
			lb.Insns = append(lb.Insns, &lir.Write{Src: resolveReg(v.Args[0])})
		}

		return
	}

	argc := len(v.Args)

	for i := argc - 1; i >= 0; i-- {
		lb.Insns = append(lb.Insns, &lir.Push{Value: resolveReg(v.Args[i]), Addr: sp})
	}

	lb.Insns = append(lb.Insns, lir.NewCall(v.Name, argc))

	if argc > 0 {
		lb.Insns = append(lb.Insns, &lir.Inc{Dst: sp, Amount: -argc})
	}

	if v.ReturnsValue {
		rv := register.PhysicalByIndex(register.RV)
		lb.Insns = append(lb.Insns, &lir.Copy{Dst: valueReg[v.ID()], Src: rv})
	}
}
