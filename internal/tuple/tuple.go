package tuple

import (
	"fmt"
	"strings"
)

// Tuple is one decoded instruction: a PC and an opcode, plus whatever
// immediate operand that opcode carries.
type Tuple interface {
	Opcode() Opcode
	PC() int
	String() string
}

type base struct {
	op Opcode
	pc int
}

func (b base) Opcode() Opcode { return b.op }
func (b base) PC() int        { return b.pc }

// NoArg covers opcodes with no immediate operand: DUP, POP, ICONST_0,
// ICONST_1, IADD/ISUB/IMUL/IDIV/IREM/INEG, IRETURN, RETURN.
type NoArg struct{ base }

func (t NoArg) String() string { return fmt.Sprintf("%3d: %s", t.pc, t.op) }

// Ldc pushes a constant integer literal.
type Ldc struct {
	base
	Value int
}

func (t Ldc) String() string { return fmt.Sprintf("%3d: %s %d", t.pc, t.op, t.Value) }

// LoadStore covers ILOAD/ISTORE, addressing one local slot by index.
type LoadStore struct {
	base
	Index int
}

func (t LoadStore) String() string { return fmt.Sprintf("%3d: %s %d", t.pc, t.op, t.Index) }

// Branch covers GOTO and the IFEQ/IFNE/IF_ICMPxx family. Location is an
// absolute pc, already resolved from the stream's relative displacement.
type Branch struct {
	base
	Location int
}

func (t Branch) String() string { return fmt.Sprintf("%3d: %s -> %d", t.pc, t.op, t.Location) }

// MethodCall covers INVOKESTATIC: the callee's name, descriptor and
// the number of arguments it pops, plus whether it is one of the
// built-in I/O primitives (read/write) that has no compiled body.
type MethodCall struct {
	base
	Name       string
	Descriptor string
	ArgCount   int
	IsIO       bool
}

func (t MethodCall) String() string {
	return fmt.Sprintf("%3d: %s %s%s (%d args)", t.pc, t.op, t.Name, t.Descriptor, t.ArgCount)
}

// MethodResolver looks up the callee a method-table index refers to.
type MethodResolver interface {
	ResolveMethod(index int) (name, descriptor string, isIO bool, err error)
}

// Decode walks a method's raw opcode stream and returns the tuple list.
// Each tuple's pc is the offset of its opcode byte, matching how branch
// targets and leader-finding in the cfg package expect to address them.
func Decode(code []int, resolver MethodResolver) ([]Tuple, error) {
	var out []Tuple

	pc := 0
	for pc < len(code) {
		op := Opcode(code[pc])
		start := pc

		switch op {
		case DUP, POP, ICONST0, ICONST1, IADD, ISUB, IMUL, IDIV, IREM, INEG, IRETURN, RETURN:
			out = append(out, NoArg{base{op, start}})
			pc++

		case LDC:
			v, err := readI16(code, pc+1)
			if err != nil {
				return nil, fmt.Errorf("tuple: decode ldc at pc %d: %w", start, err)
			}

			out = append(out, Ldc{base{op, start}, v})
			pc += 3

		case ILOAD, ISTORE:
			idx, err := readU8(code, pc+1)
			if err != nil {
				return nil, fmt.Errorf("tuple: decode %s at pc %d: %w", op, start, err)
			}

			out = append(out, LoadStore{base{op, start}, idx})
			pc += 2

		case GOTO, IFEQ, IFNE, IFICMPEQ, IFICMPNE, IFICMPLT, IFICMPGE, IFICMPGT, IFICMPLE:
			disp, err := readI16(code, pc+1)
			if err != nil {
				return nil, fmt.Errorf("tuple: decode %s at pc %d: %w", op, start, err)
			}

			out = append(out, Branch{base{op, start}, start + disp})
			pc += 3

		case INVOKESTATIC:
			idx, err := readI16(code, pc+1)
			if err != nil {
				return nil, fmt.Errorf("tuple: decode invokestatic at pc %d: %w", start, err)
			}

			name, desc, isIO, err := resolver.ResolveMethod(idx)
			if err != nil {
				return nil, fmt.Errorf("tuple: invokestatic at pc %d: %w", start, err)
			}

			out = append(out, MethodCall{base{op, start}, name, desc, paramCount(desc), isIO})
			pc += 3

		default:
			return nil, fmt.Errorf("tuple: unknown opcode 0x%02x at pc %d", byte(op), start)
		}
	}

	return out, nil
}

func readU8(code []int, at int) (int, error) {
	if at < 0 || at >= len(code) {
		return 0, fmt.Errorf("operand out of range at %d", at)
	}

	return code[at], nil
}

func readI16(code []int, at int) (int, error) {
	if at < 0 || at+1 >= len(code) {
		return 0, fmt.Errorf("operand out of range at %d", at)
	}

	v := (code[at] << 8) | code[at+1]
	if v >= 0x8000 {
		v -= 0x10000
	}

	return v, nil
}

func paramCount(descriptor string) int {
	start := strings.IndexByte(descriptor, '(')
	end := strings.IndexByte(descriptor, ')')

	if start < 0 || end < 0 || end < start {
		return 0
	}

	return end - start - 1
}
