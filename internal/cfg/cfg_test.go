package cfg

import (
	"testing"

	"github.com/iota-lang/minic/internal/tuple"
)

type stubResolver struct{}

func (stubResolver) ResolveMethod(int) (string, string, bool, error) { return "", "", false, nil }

func decode(t *testing.T, code []int) []tuple.Tuple {
	t.Helper()

	ts, err := tuple.Decode(code, stubResolver{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	return ts
}

func TestBuildStraightLineHasSingleRealBlock(t *testing.T) {
	code := []int{int(tuple.ICONST1), int(tuple.IRETURN)}

	g, err := Build("m", decode(t, code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(g.Blocks) != 2 {
		t.Fatalf("expected entry + 1 real block, got %d", len(g.Blocks))
	}

	if len(g.Entry().Successors) != 1 || g.Entry().Successors[0] != g.Blocks[1] {
		t.Fatalf("entry should link to the sole real block")
	}

	if len(g.Blocks[1].Successors) != 0 {
		t.Fatalf("block ending in ireturn should have no successors")
	}
}

func TestBuildConditionalBranchHasTwoSuccessors(t *testing.T) {
	// pc0: iconst_0
	// pc1: ifeq -> pc7 (3-byte tuple: op,disp hi,disp lo; displacement 6 is relative to pc1)
	// pc4: iconst_1
	// pc5: ireturn
	// pc6: iconst_0
	// pc7: ireturn
	code := []int{
		int(tuple.ICONST0),
		int(tuple.IFEQ), 0x00, 0x06,
		int(tuple.ICONST1),
		int(tuple.IRETURN),
		int(tuple.ICONST0),
		int(tuple.IRETURN),
	}

	g, err := Build("m", decode(t, code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var branchBlock *BasicBlock
	for _, b := range g.Blocks {
		if b.StartPC() == 0 {
			branchBlock = b
		}
	}

	if branchBlock == nil {
		t.Fatalf("could not find block starting at pc 0")
	}

	if len(branchBlock.Successors) != 2 {
		t.Fatalf("conditional branch block should have 2 successors, got %d", len(branchBlock.Successors))
	}
}

func TestDetectLoopsMarksHeadAndTail(t *testing.T) {
	// pc0: iconst_0                (loop head)
	// pc1: ifeq -> pc9 (exit)
	// pc4: iconst_1
	// pc5: pop
	// pc6: goto -> pc0             (back edge, tail)
	// pc9: return
	// Displacements are relative to the branch's own pc.
	code := []int{
		int(tuple.ICONST0), // pc0
		int(tuple.IFEQ), 0x00, 0x08, // pc1-3, +8 -> pc9
		int(tuple.ICONST1), // pc4
		int(tuple.POP),     // pc5
		int(tuple.GOTO), 0xff, 0xfa, // pc6-8, -6 -> pc0
		int(tuple.RETURN), // pc9
	}

	g, err := Build("m", decode(t, code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var head *BasicBlock
	for _, b := range g.Blocks {
		if b.StartPC() == 0 {
			head = b
		}
	}

	if head == nil || !head.IsLoopHead {
		t.Fatalf("block at pc0 should be marked as a loop head")
	}

	foundTail := false
	for _, b := range g.Blocks {
		if b.IsLoopTail {
			foundTail = true
		}
	}

	if !foundTail {
		t.Fatalf("expected some block to be marked as a loop tail")
	}
}

func TestBuildRemovesUnreachableBlocks(t *testing.T) {
	// pc0: goto -> pc6 (skips over a dead block at pc3)
	// pc3: iconst_0 / ireturn (dead)
	// pc6: iconst_1 / ireturn
	code := []int{
		int(tuple.GOTO), 0x00, 0x06, // pc0-2 -> pc6
		int(tuple.ICONST0), // pc3 (dead)
		int(tuple.IRETURN), // pc4 (dead)
		int(tuple.POP),     // pc5 (dead, unreachable filler so pc6 lines up)
		int(tuple.ICONST1), // pc6
		int(tuple.IRETURN), // pc7
	}

	g, err := Build("m", decode(t, code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, b := range g.Blocks {
		if b.StartPC() == 3 {
			t.Fatalf("dead block starting at pc3 should have been removed")
		}
	}
}
