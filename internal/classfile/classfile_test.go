package classfile

import "testing"

func sample() []byte {
	return []byte(`{
		"formatVersion": "1.0.0",
		"methods": [
			{"name": "read", "descriptor": "()I", "maxLocals": 0, "code": []},
			{"name": "write", "descriptor": "(I)V", "maxLocals": 1, "code": []},
			{"name": "add", "descriptor": "(II)I", "maxLocals": 2, "code": [2, 3, 0, 1, 96, 172]}
		]
	}`)
}

func TestParseDecodesMethods(t *testing.T) {
	f, err := Parse(sample())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Methods) != 3 {
		t.Fatalf("expected 3 methods, got %d", len(f.Methods))
	}

	if f.Methods[2].Name != "add" || f.Methods[2].MaxLocals != 2 {
		t.Fatalf("unexpected third method: %+v", f.Methods[2])
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	data := []byte(`{"formatVersion": "2.0.0", "methods": []}`)

	if _, err := Parse(data); err == nil {
		t.Fatalf("expected Parse to reject formatVersion 2.0.0")
	}
}

func TestParseRejectsMalformedVersion(t *testing.T) {
	data := []byte(`{"formatVersion": "not-a-version", "methods": []}`)

	if _, err := Parse(data); err == nil {
		t.Fatalf("expected Parse to reject a malformed formatVersion")
	}
}

func TestMethodByIndexBoundsCheck(t *testing.T) {
	f, err := Parse(sample())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := f.MethodByIndex(-1); err == nil {
		t.Fatalf("expected a negative index to be rejected")
	}

	if _, err := f.MethodByIndex(len(f.Methods)); err == nil {
		t.Fatalf("expected an out-of-range index to be rejected")
	}

	m, err := f.MethodByIndex(2)
	if err != nil {
		t.Fatalf("MethodByIndex(2): %v", err)
	}

	if m.Name != "add" {
		t.Fatalf("expected method 2 to be add, got %s", m.Name)
	}
}

func TestResolveMethodMatchesMethodByIndex(t *testing.T) {
	f, err := Parse(sample())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	name, descriptor, isIO, err := f.ResolveMethod(1)
	if err != nil {
		t.Fatalf("ResolveMethod: %v", err)
	}

	if name != "write" || descriptor != "(I)V" || !isIO {
		t.Fatalf("unexpected resolution: name=%s descriptor=%s isIO=%v", name, descriptor, isIO)
	}
}

func TestIsIORecognizesAllThreePrimitives(t *testing.T) {
	cases := []Method{
		{Name: "read", Descriptor: "()I"},
		{Name: "write", Descriptor: "(I)V"},
		{Name: "write", Descriptor: "(Z)V"},
	}

	for _, m := range cases {
		if !m.IsIO() {
			t.Errorf("expected %s%s to be recognized as IO", m.Name, m.Descriptor)
		}
	}

	add := Method{Name: "add", Descriptor: "(II)I"}
	if add.IsIO() {
		t.Errorf("expected add(II)I not to be recognized as IO")
	}
}

func TestReturnsValue(t *testing.T) {
	noReturn := Method{Descriptor: "(I)V"}
	if noReturn.ReturnsValue() {
		t.Errorf("expected (I)V not to return a value")
	}

	hasReturn := Method{Descriptor: "(II)I"}
	if !hasReturn.ReturnsValue() {
		t.Errorf("expected (II)I to return a value")
	}
}

func TestParamCount(t *testing.T) {
	cases := map[string]int{
		"()I":   0,
		"(I)V":  1,
		"(II)I": 2,
	}

	for descriptor, want := range cases {
		if got := ParamCount(descriptor); got != want {
			t.Errorf("ParamCount(%q) = %d, want %d", descriptor, got, want)
		}
	}
}
