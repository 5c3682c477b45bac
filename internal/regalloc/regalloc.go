// Package regalloc assigns physical registers to the virtual registers
// a lowered LIR function uses, via Chaitin-style graph coloring over
// the interference graph built from liveness intervals: simplify away
// low-degree nodes, spill the highest-degree holdout when none remain,
// then color the simplify stack back to front.
package regalloc

import (
	"fmt"
	"sort"

	"github.com/iota-lang/minic/internal/liveness"
	"github.com/iota-lang/minic/internal/register"
)

// scratchSpill is a second physical register permanently held back from
// coloring, alongside register.Zero, so that an instruction reading two
// spilled operands at once (both sides of an Arithmetic, say) still has
// a distinct scratch register for each reload.
const scratchSpill = register.T11

// Allocation is what became of one virtual register: either a physical
// register it was colored with, or a spill slot it must be reloaded
// from and stored to around every use.
type Allocation struct {
	Physical  register.Register
	Spilled   bool
	SpillSlot int
}

// Result is the outcome of allocating one function.
type Result struct {
	Allocations map[register.Register]Allocation
	SpillWords  int
}

// graph is the interference graph: an edge between two virtual
// registers means their live ranges overlap somewhere, so they cannot
// share a physical register. full never changes once built; adj and
// degree are mutated by simplify/spill as nodes are removed.
type graph struct {
	nodes  []register.Register
	full   map[register.Register]map[register.Register]bool
	adj    map[register.Register]map[register.Register]bool
	degree map[register.Register]int
}

func buildGraph(intervals map[register.Register]*liveness.Interval) *graph {
	g := &graph{
		full:   make(map[register.Register]map[register.Register]bool),
		adj:    make(map[register.Register]map[register.Register]bool),
		degree: make(map[register.Register]int),
	}

	for r := range intervals {
		if r.IsVirtual() {
			g.nodes = append(g.nodes, r)
		}
	}

	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].Index < g.nodes[j].Index })

	for _, r := range g.nodes {
		g.full[r] = make(map[register.Register]bool)
		g.adj[r] = make(map[register.Register]bool)
	}

	for i, a := range g.nodes {
		for _, b := range g.nodes[i+1:] {
			if intervals[a].Intersects(intervals[b]) {
				g.full[a][b] = true
				g.full[b][a] = true
				g.adj[a][b] = true
				g.adj[b][a] = true
				g.degree[a]++
				g.degree[b]++
			}
		}
	}

	return g
}

// removeNode drops n from the mutable adjacency used by simplify and
// spill, decrementing every still-present neighbor's cached degree.
// full is left untouched so coloring can still see who n interfered
// with once it is popped back off the simplify stack.
func (g *graph) removeNode(n register.Register, present map[register.Register]bool) {
	for nb := range g.adj[n] {
		delete(g.adj[nb], n)

		if present[nb] {
			g.degree[nb]--
		}
	}

	g.adj[n] = nil
}

// Allocate colors every virtual register touched by intervals against
// the machine's colorable set, spilling as many as necessary to make
// the rest colorable. Spill slots are addressed FP-relative at
// non-negative offsets starting from spillBase; parameters live at
// negative FP offsets and the saved RA/FP pair lives on the stack
// proper rather than in a slot, so neither can alias a spill slot
// regardless of what spillBase is - the machine has no separate
// word/byte units, so slots are one word apart starting there.
func Allocate(intervals map[register.Register]*liveness.Interval, spillBase int) (*Result, error) {
	colors := colorSet()
	k := len(colors)

	g := buildGraph(intervals)

	present := make(map[register.Register]bool, len(g.nodes))
	for _, n := range g.nodes {
		present[n] = true
	}

	var stack []register.Register

	spilled := make(map[register.Register]bool)

	for len(present) > 0 {
		removedAny := true
		for removedAny {
			removedAny = false

			for _, n := range g.nodes {
				if !present[n] {
					continue
				}

				if g.degree[n] < k {
					stack = append(stack, n)
					g.removeNode(n, present)
					delete(present, n)
					removedAny = true
				}
			}
		}

		if len(present) == 0 {
			break
		}

		victim := determineSpill(present, g, intervals)
		spilled[victim] = true
		g.removeNode(victim, present)
		delete(present, victim)
	}

	colored := make(map[register.Register]register.Register)

	for i := len(stack) - 1; i >= 0; i-- {
		n := stack[i]

		used := make(map[int]bool)

		for nb := range g.full[n] {
			if pr, ok := colored[nb]; ok {
				used[pr.Index] = true
			}
		}

		assigned := false

		for _, c := range colors {
			if !used[c] {
				colored[n] = register.PhysicalByIndex(c)
				assigned = true

				break
			}
		}

		if !assigned {
			// Every neighbor colored so far already claims a distinct
			// color and there are fewer than k of them, which simplify's
			// degree bound rules out; fall back to a spill rather than
			// leave n uncolored.
			spilled[n] = true
		}
	}

	result := &Result{Allocations: make(map[register.Register]Allocation, len(g.nodes))}

	var spillList []register.Register
	for r := range spilled {
		spillList = append(spillList, r)
	}

	sort.Slice(spillList, func(i, j int) bool { return spillList[i].Index < spillList[j].Index })

	slot := spillBase
	for _, r := range spillList {
		result.Allocations[r] = Allocation{
			Physical:  register.PhysicalByIndex(register.Zero),
			Spilled:   true,
			SpillSlot: slot,
		}
		slot++
	}

	result.SpillWords = slot - spillBase

	for r, pr := range colored {
		if spilled[r] {
			continue
		}

		result.Allocations[r] = Allocation{Physical: pr}
	}

	for _, n := range g.nodes {
		if _, ok := result.Allocations[n]; !ok {
			return nil, fmt.Errorf("regalloc: %s was never colored or spilled", n)
		}
	}

	return result, nil
}

// AllocateNaive gives every virtual register its own spill slot rather
// than attempting to color any of them: the selector's "naive" strategy,
// standing in for the scheme the original's constructor names but never
// actually builds (its emitter's write() is an empty stub regardless of
// which scheme is requested). Useful as a baseline to diff the coloring
// allocator's output against, and as a fallback that always terminates
// even on inputs pathological enough to make coloring expensive.
func AllocateNaive(intervals map[register.Register]*liveness.Interval, spillBase int) *Result {
	var virtuals []register.Register
	for r := range intervals {
		if r.IsVirtual() {
			virtuals = append(virtuals, r)
		}
	}

	sort.Slice(virtuals, func(i, j int) bool { return virtuals[i].Index < virtuals[j].Index })

	result := &Result{Allocations: make(map[register.Register]Allocation, len(virtuals))}

	slot := spillBase
	for _, r := range virtuals {
		result.Allocations[r] = Allocation{
			Physical:  register.PhysicalByIndex(register.Zero),
			Spilled:   true,
			SpillSlot: slot,
		}
		slot++
	}

	result.SpillWords = slot - spillBase

	return result
}

// colorSet lists the physical registers the allocator may hand out.
// It is register.Allocatable() with scratchSpill withheld, so spill
// fixups always have a free register to reload into without disturbing
// a value the colorer already placed there.
func colorSet() []int {
	var out []int

	for _, c := range register.Allocatable() {
		if c == scratchSpill {
			continue
		}

		out = append(out, c)
	}

	return out
}

// determineSpill picks the still-present node with the highest degree,
// breaking ties by preferring to spill whichever has fewer recorded use
// positions - the one cheapest to reload around.
func determineSpill(present map[register.Register]bool, g *graph, intervals map[register.Register]*liveness.Interval) register.Register {
	var best register.Register

	bestSet := false

	for n := range present {
		if !bestSet {
			best = n
			bestSet = true

			continue
		}

		dn, db := g.degree[n], g.degree[best]
		if dn > db || (dn == db && len(intervals[n].UsePositions) < len(intervals[best].UsePositions)) {
			best = n
		}
	}

	return best
}
