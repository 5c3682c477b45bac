// Package classfile loads the JSON-encoded bytecode unit produced by the
// front end: a format version tag plus a flat list of methods, each
// carrying a maxLocals count and its raw bytecode stream.
package classfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// supportedRange is the band of formatVersion values this backend
// understands. Bumping the minor/patch of the JSON schema without
// breaking decode compatibility does not require touching this.
var supportedRange = mustConstraint(">=1.0.0, <2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}

	return c
}

// Method is one compiled function: a name, a JVM-style descriptor string
// ("(II)I"), a declared local-slot count, and the raw opcode stream.
type Method struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	MaxLocals  int    `json:"maxLocals"`
	Code       []int  `json:"code"`
}

// File is the top-level unit a single compile invocation consumes.
type File struct {
	FormatVersion string   `json:"formatVersion"`
	Methods       []Method `json:"methods"`
}

// Load reads and parses a classfile from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classfile: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a classfile from raw JSON bytes and validates its
// format version against the supported range.
func Parse(data []byte) (*File, error) {
	var f File

	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classfile: decode: %w", err)
	}

	if err := f.checkVersion(); err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *File) checkVersion() error {
	v, err := semver.NewVersion(f.FormatVersion)
	if err != nil {
		return fmt.Errorf("classfile: malformed formatVersion %q: %w", f.FormatVersion, err)
	}

	if !supportedRange.Check(v) {
		return fmt.Errorf("classfile: unsupported formatVersion %s (need %s)", f.FormatVersion, supportedRange)
	}

	return nil
}

// MethodByIndex resolves the table index an INVOKESTATIC tuple refers to.
func (f *File) MethodByIndex(i int) (*Method, error) {
	if i < 0 || i >= len(f.Methods) {
		return nil, fmt.Errorf("classfile: method index %d out of range (have %d)", i, len(f.Methods))
	}

	return &f.Methods[i], nil
}

// ResolveMethod implements tuple.MethodResolver: an INVOKESTATIC operand
// is an index into this same flat method table.
func (f *File) ResolveMethod(index int) (name, descriptor string, isIO bool, err error) {
	m, err := f.MethodByIndex(index)
	if err != nil {
		return "", "", false, err
	}

	return m.Name, m.Descriptor, m.IsIO(), nil
}

// IsIO reports whether a method is one of the three built-in I/O
// primitives that never get a body and are never lowered past a call:
// read()I, write(I)V, write(Z)V.
func (m *Method) IsIO() bool {
	switch {
	case m.Name == "read" && m.Descriptor == "()I":
		return true
	case m.Name == "write" && (m.Descriptor == "(I)V" || m.Descriptor == "(Z)V"):
		return true
	default:
		return false
	}
}

// ReturnsValue reports whether the descriptor's return type is non-void.
func (m *Method) ReturnsValue() bool {
	i := strings.IndexByte(m.Descriptor, ')')
	if i < 0 || i+1 >= len(m.Descriptor) {
		return false
	}

	return m.Descriptor[i+1] != 'V'
}

// ParamCount counts the parameters in a descriptor's leading "(...)"
// segment. Every parameter in this language is a single integer-or-bool
// word, so each letter counts as exactly one argument.
func ParamCount(descriptor string) int {
	start := strings.IndexByte(descriptor, '(')
	end := strings.IndexByte(descriptor, ')')

	if start < 0 || end < 0 || end < start {
		return 0
	}

	return end - start - 1
}
