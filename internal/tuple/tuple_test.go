package tuple

import "testing"

type fakeResolver struct{}

func (fakeResolver) ResolveMethod(index int) (string, string, bool, error) {
	switch index {
	case 0:
		return "add", "(II)I", false, nil
	case 1:
		return "write", "(I)V", true, nil
	default:
		return "", "", false, nil
	}
}

func TestDecodeLoadStoreAndArithmetic(t *testing.T) {
	code := []int{int(ILOAD), 0, int(ILOAD), 1, int(IADD), int(ISTORE), 2, int(RETURN)}

	tuples, err := Decode(code, fakeResolver{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(tuples) != 5 {
		t.Fatalf("expected 5 tuples, got %d", len(tuples))
	}

	ls, ok := tuples[0].(LoadStore)
	if !ok || ls.Opcode() != ILOAD || ls.Index != 0 {
		t.Fatalf("tuple 0 = %#v, want ILOAD 0", tuples[0])
	}

	if tuples[4].Opcode() != RETURN || tuples[4].PC() != 7 {
		t.Fatalf("tuple 4 = %#v, want RETURN at pc 7", tuples[4])
	}
}

func TestDecodeBranchTargetIsAbsolute(t *testing.T) {
	// GOTO at pc 0 with displacement +5 should resolve to an absolute
	// target of 5, not a value relative to the operand bytes.
	code := []int{int(GOTO), 0x00, 0x05, int(RETURN), int(RETURN), int(RETURN)}

	tuples, err := Decode(code, fakeResolver{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	br, ok := tuples[0].(Branch)
	if !ok || br.Location != 5 {
		t.Fatalf("tuple 0 = %#v, want Branch to 5", tuples[0])
	}
}

func TestDecodeMethodCallResolvesIO(t *testing.T) {
	code := []int{int(ICONST1), int(INVOKESTATIC), 0x00, 0x01, int(POP), int(RETURN)}

	tuples, err := Decode(code, fakeResolver{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	call, ok := tuples[1].(MethodCall)
	if !ok {
		t.Fatalf("tuple 1 = %#v, want MethodCall", tuples[1])
	}

	if call.Name != "write" || call.ArgCount != 1 || !call.IsIO {
		t.Fatalf("call = %#v, want write/(I)V/1 arg/isIO", call)
	}
}

func TestDecodeUnknownOpcodeErrors(t *testing.T) {
	if _, err := Decode([]int{0xff}, fakeResolver{}); err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
}
