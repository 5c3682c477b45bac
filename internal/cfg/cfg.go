// Package cfg builds a control-flow graph of basic blocks from a
// method's decoded tuple stream: leader-finding, block splitting,
// successor/predecessor wiring, loop detection and dead-block removal.
package cfg

import (
	"fmt"
	"sort"

	"github.com/iota-lang/minic/internal/tuple"
)

// BasicBlock is a maximal straight-line run of tuples. Index 0 is
// always a synthetic, tuple-less entry block; real blocks start at 1.
type BasicBlock struct {
	Index        int
	Tuples       []tuple.Tuple
	Predecessors []*BasicBlock
	Successors   []*BasicBlock

	IsLoopHead bool
	IsLoopTail bool

	visited bool
}

func (b *BasicBlock) String() string {
	return fmt.Sprintf("B%d", b.Index)
}

// StartPC returns the pc of the block's first tuple, or -1 for the
// synthetic entry block.
func (b *BasicBlock) StartPC() int {
	if len(b.Tuples) == 0 {
		return -1
	}

	return b.Tuples[0].PC()
}

func (b *BasicBlock) last() tuple.Tuple {
	if len(b.Tuples) == 0 {
		return nil
	}

	return b.Tuples[len(b.Tuples)-1]
}

// Graph is the control-flow graph for a single method.
type Graph struct {
	MethodName string
	Blocks     []*BasicBlock // Blocks[0] is the synthetic entry.
}

// Entry returns the synthetic B0 entry block.
func (g *Graph) Entry() *BasicBlock { return g.Blocks[0] }

// Build decodes leaders, splits the tuple stream into basic blocks,
// wires successor/predecessor edges, marks loop heads/tails reachable
// from the entry, and drops anything DFS from the entry never reaches.
func Build(methodName string, tuples []tuple.Tuple) (*Graph, error) {
	if len(tuples) == 0 {
		return nil, fmt.Errorf("cfg: method %s has no instructions", methodName)
	}

	leaders := findLeaders(tuples)

	isTuplePC := make(map[int]bool, len(tuples))
	for _, t := range tuples {
		isTuplePC[t.PC()] = true
	}

	for pc := range leaders {
		if !isTuplePC[pc] {
			return nil, fmt.Errorf("cfg: method %s: branch target pc %d does not land on an instruction", methodName, pc)
		}
	}

	blocks, byStartPC := buildBasicBlocks(tuples, leaders)

	entry := &BasicBlock{Index: 0}
	all := append([]*BasicBlock{entry}, blocks...)

	for i, b := range all {
		b.Index = i
	}

	if err := wireSuccessors(blocks, byStartPC); err != nil {
		return nil, err
	}

	link(entry, blocks[0])

	g := &Graph{MethodName: methodName, Blocks: all}

	detectLoops(g)
	removeUnreachable(g)

	return g, nil
}

func findLeaders(tuples []tuple.Tuple) map[int]bool {
	leaders := map[int]bool{tuples[0].PC(): true}

	for i, t := range tuples {
		if br, ok := t.(tuple.Branch); ok {
			leaders[br.Location] = true

			if i+1 < len(tuples) {
				leaders[tuples[i+1].PC()] = true
			}
		}
	}

	return leaders
}

func buildBasicBlocks(tuples []tuple.Tuple, leaders map[int]bool) ([]*BasicBlock, map[int]*BasicBlock) {
	starts := make([]int, 0, len(leaders))
	for pc := range leaders {
		starts = append(starts, pc)
	}

	sort.Ints(starts)

	byStartPC := make(map[int]*BasicBlock, len(starts))
	blocks := make([]*BasicBlock, 0, len(starts))

	startIdx := make(map[int]int, len(starts))
	for i, t := range tuples {
		startIdx[t.PC()] = i
	}

	for i, pc := range starts {
		from := startIdx[pc]

		to := len(tuples)
		if i+1 < len(starts) {
			to = startIdx[starts[i+1]]
		}

		b := &BasicBlock{Tuples: tuples[from:to]}
		blocks = append(blocks, b)
		byStartPC[pc] = b
	}

	return blocks, byStartPC
}

func wireSuccessors(blocks []*BasicBlock, byStartPC map[int]*BasicBlock) error {
	for i, b := range blocks {
		last := b.last()
		if last == nil {
			continue
		}

		switch t := last.(type) {
		case tuple.Branch:
			target, ok := byStartPC[t.Location]
			if !ok {
				return fmt.Errorf("cfg: branch at pc %d targets pc %d, no block starts there", t.PC(), t.Location)
			}

			if tuple.IsConditionalBranch(t.Opcode()) {
				if i+1 < len(blocks) {
					link(b, blocks[i+1])
				}

				link(b, target)
			} else {
				link(b, target)
			}

		default:
			if i+1 < len(blocks) {
				link(b, blocks[i+1])
			}
		}
	}

	return nil
}

func link(from, to *BasicBlock) {
	for _, s := range from.Successors {
		if s == to {
			return
		}
	}

	from.Successors = append(from.Successors, to)
	to.Predecessors = append(to.Predecessors, from)
}

func detectLoops(g *Graph) {
	active := make(map[*BasicBlock]bool)

	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		b.visited = true
		active[b] = true

		for _, s := range b.Successors {
			if active[s] {
				s.IsLoopHead = true
				b.IsLoopTail = true

				continue
			}

			if !s.visited {
				visit(s)
			}
		}

		active[b] = false
	}

	visit(g.Entry())
}

func removeUnreachable(g *Graph) {
	kept := make([]*BasicBlock, 0, len(g.Blocks))

	for _, b := range g.Blocks {
		if b.visited {
			kept = append(kept, b)
		}
	}

	for i, b := range kept {
		b.Index = i

		filtered := make([]*BasicBlock, 0, len(b.Predecessors))

		for _, p := range b.Predecessors {
			if p.visited {
				filtered = append(filtered, p)
			}
		}

		b.Predecessors = filtered
	}

	g.Blocks = kept
}
