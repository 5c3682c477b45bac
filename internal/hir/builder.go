package hir

import (
	"fmt"

	"github.com/iota-lang/minic/internal/cfg"
	"github.com/iota-lang/minic/internal/tuple"
)

type idSetter interface{ setID(int) }

type builder struct {
	fn     *Function
	nextID int
}

func (b *builder) register(ins Insn) Insn {
	if s, ok := ins.(idSetter); ok {
		s.setID(b.nextID)
	}

	b.nextID++
	b.fn.Nodes[ins.ID()] = ins

	return ins
}

// Build runs symbolic execution over g's tuples, block by block in a
// single BFS pass from the entry, producing SSA-form HIR: a phi per
// local at every merge point, then a minimal-SSA cleanup that folds
// away every phi whose arguments all resolve to the same value.
func Build(name string, g *cfg.Graph, paramCount, maxLocals int) (*Function, error) {
	fn := &Function{
		Name:       name,
		ParamCount: paramCount,
		MaxLocals:  maxLocals,
		Graph:      g,
		Nodes:      make(map[int]Insn),
		BlockInsns: make(map[*cfg.BasicBlock][]Insn),
		BlockPhis:  make(map[*cfg.BasicBlock][]*Phi),
		Redirect:   make(map[int]int),
	}
	b := &builder{fn: fn}

	locals := make(map[*cfg.BasicBlock][]int)
	visited := make(map[*cfg.BasicBlock]bool)

	root := g.Entry()
	seed := make([]int, maxLocals)

	for i := range seed {
		if i < paramCount {
			lp := &LoadParam{Index: i}
			b.register(lp)
			fn.BlockInsns[root] = append(fn.BlockInsns[root], lp)
			seed[i] = lp.ID()
		} else {
			seed[i] = -1
		}
	}

	locals[root] = seed
	visited[root] = true

	queue := []*cfg.BasicBlock{root}
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]

		if err := b.execBlock(blk, locals[blk]); err != nil {
			return nil, err
		}

		for _, s := range blk.Successors {
			if visited[s] {
				continue
			}

			visited[s] = true

			if len(s.Predecessors) == 1 {
				locals[s] = append([]int(nil), locals[blk]...)
			} else {
				arr := make([]int, maxLocals)
				for i := 0; i < maxLocals; i++ {
					phi := &Phi{Block: s, Index: i}
					b.register(phi)
					fn.BlockPhis[s] = append(fn.BlockPhis[s], phi)
					arr[i] = phi.ID()
				}

				locals[s] = arr
			}

			queue = append(queue, s)
		}
	}

	for blk, phis := range fn.BlockPhis {
		for _, phi := range phis {
			phi.Args = make([]int, len(blk.Predecessors))
			for k, pred := range blk.Predecessors {
				phi.Args[k] = locals[pred][phi.Index]
			}
		}
	}

	cleanupPhis(fn)

	return fn, nil
}

func (b *builder) execBlock(blk *cfg.BasicBlock, locals []int) error {
	var stack []int

	pop := func() (int, error) {
		if len(stack) == 0 {
			return 0, fmt.Errorf("hir: block %s: stack underflow", blk)
		}

		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		return v, nil
	}
	push := func(id int) { stack = append(stack, id) }
	emit := func(ins Insn) Insn {
		b.register(ins)
		b.fn.BlockInsns[blk] = append(b.fn.BlockInsns[blk], ins)

		return ins
	}

	for _, t := range blk.Tuples {
		switch v := t.(type) {
		case tuple.NoArg:
			if err := b.execNoArg(blk, v, &stack, pop, push, emit); err != nil {
				return err
			}

		case tuple.Ldc:
			push(emit(&IntConst{Value: v.Value}).ID())

		case tuple.LoadStore:
			if v.Opcode() == tuple.ILOAD {
				if v.Index < 0 || v.Index >= len(locals) || locals[v.Index] == -1 {
					return fmt.Errorf("hir: block %s: iload %d before any store", blk, v.Index)
				}

				push(locals[v.Index])
			} else {
				val, err := pop()
				if err != nil {
					return err
				}

				locals[v.Index] = val
			}

		case tuple.Branch:
			target, fallthroughBlk, err := branchTargets(blk, v)
			if err != nil {
				return err
			}

			switch v.Opcode() {
			case tuple.GOTO:
				emit(&Jump{Target: target})

			case tuple.IFEQ, tuple.IFNE:
				val, err := pop()
				if err != nil {
					return err
				}

				zero := emit(&IntConst{Value: 0}).ID()
				cmp := "=="

				if v.Opcode() == tuple.IFNE {
					cmp = "!="
				}

				emit(&CondJump{Cmp: cmp, LHS: val, RHS: zero, True: target, False: fallthroughBlk})

			default:
				rhs, err := pop()
				if err != nil {
					return err
				}

				lhs, err := pop()
				if err != nil {
					return err
				}

				emit(&CondJump{Cmp: cmpMnemonic(v.Opcode()), LHS: lhs, RHS: rhs, True: target, False: fallthroughBlk})
			}

		case tuple.MethodCall:
			args := make([]int, v.ArgCount)

			for k := v.ArgCount - 1; k >= 0; k-- {
				a, err := pop()
				if err != nil {
					return err
				}

				args[k] = a
			}

			call := emit(&Call{Name: v.Name, Args: args, ReturnsValue: returnsValue(v.Descriptor), IsIO: v.IsIO}).(*Call)
			if call.ReturnsValue {
				push(call.ID())
			}

		default:
			return fmt.Errorf("hir: block %s: unexpected tuple %v", blk, t)
		}
	}

	return nil
}

func (b *builder) execNoArg(
	blk *cfg.BasicBlock,
	v tuple.NoArg,
	stack *[]int,
	pop func() (int, error),
	push func(int),
	emit func(Insn) Insn,
) error {
	switch v.Opcode() {
	case tuple.ICONST0:
		push(emit(&IntConst{Value: 0}).ID())
	case tuple.ICONST1:
		push(emit(&IntConst{Value: 1}).ID())
	case tuple.DUP:
		top, err := pop()
		if err != nil {
			return err
		}

		push(top)
		push(top)
	case tuple.POP:
		if _, err := pop(); err != nil {
			return err
		}
	case tuple.IADD, tuple.ISUB, tuple.IMUL, tuple.IDIV, tuple.IREM:
		rhs, err := pop()
		if err != nil {
			return err
		}

		lhs, err := pop()
		if err != nil {
			return err
		}

		push(emit(&Arithmetic{Mnemonic: arithMnemonic(v.Opcode()), LHS: lhs, RHS: rhs}).ID())
	case tuple.INEG:
		operand, err := pop()
		if err != nil {
			return err
		}

		negOne := emit(&IntConst{Value: -1}).ID()
		push(emit(&Arithmetic{Mnemonic: "*", LHS: operand, RHS: negOne}).ID())
	case tuple.IRETURN:
		src, err := pop()
		if err != nil {
			return err
		}

		emit(&Return{Src: src, HasValue: true})
	case tuple.RETURN:
		emit(&Return{HasValue: false})
	default:
		return fmt.Errorf("hir: block %s: unsupported no-arg opcode %s", blk, v.Opcode())
	}

	return nil
}

func branchTargets(blk *cfg.BasicBlock, v tuple.Branch) (target, fallthroughBlk *cfg.BasicBlock, err error) {
	if v.Opcode() == tuple.GOTO {
		if len(blk.Successors) < 1 {
			return nil, nil, fmt.Errorf("hir: block %s: goto has no successor", blk)
		}

		return blk.Successors[0], nil, nil
	}

	if len(blk.Successors) < 2 {
		return nil, nil, fmt.Errorf("hir: block %s: conditional branch missing a successor", blk)
	}

	// wireSuccessors links [fallthrough, target] in that order.
	return blk.Successors[1], blk.Successors[0], nil
}

func arithMnemonic(op tuple.Opcode) string {
	switch op {
	case tuple.IADD:
		return "+"
	case tuple.ISUB:
		return "-"
	case tuple.IMUL:
		return "*"
	case tuple.IDIV:
		return "/"
	case tuple.IREM:
		return "%"
	default:
		return "?"
	}
}

func cmpMnemonic(op tuple.Opcode) string {
	switch op {
	case tuple.IFICMPEQ:
		return "=="
	case tuple.IFICMPNE:
		return "!="
	case tuple.IFICMPLT:
		return "<"
	case tuple.IFICMPLE:
		return "<="
	case tuple.IFICMPGT:
		return ">"
	case tuple.IFICMPGE:
		return ">="
	default:
		return "?"
	}
}

func returnsValue(descriptor string) bool {
	for i := len(descriptor) - 1; i >= 0; i-- {
		if descriptor[i] == ')' {
			return i+1 < len(descriptor) && descriptor[i+1] != 'V'
		}
	}

	return false
}

// cleanupPhis removes every phi whose arguments, once self-references
// and already-removed phis are resolved away, collapse to a single
// distinct value, redirecting its id to that value. This runs to a
// fixpoint since removing one phi can make another trivially redundant.
func cleanupPhis(fn *Function) {
	resolve := func(id int) int {
		for {
			if r, ok := fn.Redirect[id]; ok {
				id = r

				continue
			}

			return id
		}
	}

	for changed := true; changed; {
		changed = false

		for blk, phis := range fn.BlockPhis {
			kept := phis[:0:0]

			for _, phi := range phis {
				if _, gone := fn.Redirect[phi.ID()]; gone {
					continue
				}

				distinct := map[int]bool{}

				for _, a := range phi.Args {
					if ra := resolve(a); ra != phi.ID() {
						distinct[ra] = true
					}
				}

				if len(distinct) <= 1 {
					rep := phi.ID()
					for k := range distinct {
						rep = k
					}

					if rep != phi.ID() {
						fn.Redirect[phi.ID()] = rep
						changed = true

						continue
					}
				}

				kept = append(kept, phi)
			}

			fn.BlockPhis[blk] = kept
		}
	}
}
