package lir

import (
	"testing"

	"github.com/iota-lang/minic/internal/register"
)

func TestRenumberUsesTheRenumberGapStride(t *testing.T) {
	blk := &BasicBlock{Label: "L0"}
	blk.Insns = []Insn{
		&IntConst{Dst: register.NewVirtual(0), Value: 1},
		&IntConst{Dst: register.NewVirtual(1), Value: 2},
		&Return{},
	}

	fn := &Function{Name: "f", Blocks: []*BasicBlock{blk}}
	fn.Renumber()

	want := []int{0, RenumberGap, 2 * RenumberGap}
	for i, ins := range blk.Insns {
		if ins.ID() != want[i] {
			t.Errorf("instruction %d: got id %d, want %d", i, ins.ID(), want[i])
		}
	}
}

func TestReturnAndJumpShareTheJumprMnemonic(t *testing.T) {
	if (&Return{}).Op() != "jumpr" {
		t.Errorf("expected Return to lower to jumpr, got %q", (&Return{}).Op())
	}

	if (&Jump{Target: &BasicBlock{}}).Op() != "jumpr" {
		t.Errorf("expected Jump to lower to jumpr, got %q", (&Jump{Target: &BasicBlock{}}).Op())
	}
}

func TestPushWritesAddrAndReadsBoth(t *testing.T) {
	p := &Push{Value: register.PhysicalByIndex(register.T1), Addr: register.PhysicalByIndex(register.SP)}

	if p.Write() == nil || *p.Write() != p.Addr {
		t.Fatalf("expected Push to write Addr")
	}

	if len(p.Reads()) != 2 {
		t.Fatalf("expected Push to read both Value and Addr, got %d", len(p.Reads()))
	}
}

func TestCallWritesRA(t *testing.T) {
	c := NewCall("helper", 2)

	if c.Write() == nil || c.Write().Index != register.RA {
		t.Fatalf("expected Call to write RA")
	}

	if c.ArgCount != 2 || c.Name != "helper" {
		t.Fatalf("unexpected call fields: %+v", c)
	}
}
