package emit

import (
	"strings"
	"testing"

	"github.com/iota-lang/minic/internal/lir"
	"github.com/iota-lang/minic/internal/register"
)

func r(i int) register.Register { return register.PhysicalByIndex(i) }

func TestEmitPrologueSavesAndRestoresFramePointer(t *testing.T) {
	ret := &lir.BasicBlock{Label: "L0"}
	ret.Insns = []lir.Insn{
		&lir.IntConst{Dst: r(register.T1), Value: 7},
		&lir.Copy{Dst: r(register.RV), Src: r(register.T1)},
		&lir.Return{},
	}

	fn := &lir.Function{Name: "main", ParamSize: 0, Blocks: []*lir.BasicBlock{ret}}

	out, err := Emit([]*lir.Function{fn})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	// a "# name descriptor" header, then pushr RA, pushr FP, copy FP,SP,
	// pushr T1 (T1 is the only register this body writes besides RV)
	// prologue, then setn, copy, then the popr T1/popr FP/popr RA
	// epilogue, then jumpr RA.
	if len(lines) != 11 {
		t.Fatalf("expected 11 emitted lines, got %d:\n%s", len(lines), out)
	}

	if !strings.HasPrefix(lines[0], "#") {
		t.Fatalf("expected first line to be the method header comment, got %q", lines[0])
	}

	if !strings.Contains(lines[1], "pushr") {
		t.Fatalf("expected second line to push the return address, got %q", lines[1])
	}

	if !strings.Contains(lines[len(lines)-1], "jumpr") {
		t.Fatalf("expected last line to be jumpr, got %q", lines[len(lines)-1])
	}
}

func TestEmitResolvesJumpTargetsToLineNumbers(t *testing.T) {
	head := &lir.BasicBlock{Label: "L0"}
	body := &lir.BasicBlock{Label: "L1"}
	exit := &lir.BasicBlock{Label: "L2"}

	head.Insns = []lir.Insn{
		&lir.CondJump{Cmp: "<", LHS: r(register.T1), RHS: r(register.T2), True: body, False: exit},
	}
	body.Insns = []lir.Insn{
		&lir.Jump{Target: exit},
	}
	exit.Insns = []lir.Insn{
		&lir.Return{},
	}

	fn := &lir.Function{Name: "loop", ParamSize: 0, Blocks: []*lir.BasicBlock{head, body, exit}}

	out, err := Emit([]*lir.Function{fn})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if strings.Contains(out, "<nil>") {
		t.Fatalf("expected every jump target to resolve to a line number, got:\n%s", out)
	}
}

func TestEmitResolvesCallAcrossFunctions(t *testing.T) {
	calleeBlock := &lir.BasicBlock{Label: "L0"}
	calleeBlock.Insns = []lir.Insn{&lir.Return{}}
	callee := &lir.Function{Name: "helper", ParamSize: 0, Blocks: []*lir.BasicBlock{calleeBlock}}

	callerBlock := &lir.BasicBlock{Label: "L0"}
	callerBlock.Insns = []lir.Insn{
		lir.NewCall("helper", 0),
		&lir.Return{},
	}
	caller := &lir.Function{Name: "main", ParamSize: 0, Blocks: []*lir.BasicBlock{callerBlock}}

	out, err := Emit([]*lir.Function{caller, callee})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if !strings.Contains(out, "calln") {
		t.Fatalf("expected a calln line, got:\n%s", out)
	}

	if strings.Contains(out, "unknown method") {
		t.Fatalf("call target failed to resolve:\n%s", out)
	}
}

func TestEmitRejectsCallToUnknownMethod(t *testing.T) {
	b := &lir.BasicBlock{Label: "L0"}
	b.Insns = []lir.Insn{lir.NewCall("missing", 0), &lir.Return{}}
	fn := &lir.Function{Name: "main", Blocks: []*lir.BasicBlock{b}}

	if _, err := Emit([]*lir.Function{fn}); err == nil {
		t.Fatalf("expected Emit to reject a call to an undefined method")
	}
}
