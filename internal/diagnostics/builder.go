package diagnostics

import "fmt"

// Builder provides a fluent interface for constructing a Diagnostic.
type Builder struct {
	diagnostic Diagnostic
}

// NewBuilder starts an empty diagnostic.
func NewBuilder() *Builder {
	return &Builder{}
}

// In sets the category.
func (b *Builder) In(c Category) *Builder {
	b.diagnostic.Category = c

	return b
}

// ForMethod sets which method the diagnostic belongs to.
func (b *Builder) ForMethod(name string) *Builder {
	b.diagnostic.Method = name

	return b
}

// Message sets the diagnostic text.
func (b *Builder) Message(msg string) *Builder {
	b.diagnostic.Message = msg

	return b
}

// Messagef sets the diagnostic text with formatting.
func (b *Builder) Messagef(format string, args ...interface{}) *Builder {
	b.diagnostic.Message = fmt.Sprintf(format, args...)

	return b
}

// Build returns the constructed diagnostic.
func (b *Builder) Build() Diagnostic {
	return b.diagnostic
}

// MalformedBytecodeError reports an unknown opcode, a truncated operand,
// or a constant-pool index out of range while decoding one method.
func MalformedBytecodeError(method, format string, args ...interface{}) Diagnostic {
	return NewBuilder().In(MalformedBytecode).ForMethod(method).Messagef(format, args...).Build()
}

// UnreachableTargetError reports a branch displacement that does not
// land on a tuple leader.
func UnreachableTargetError(method string, target int) Diagnostic {
	return NewBuilder().In(UnreachableTarget).ForMethod(method).
		Messagef("branch target %d does not land on a tuple leader", target).Build()
}

// AllocationFailureError reports the colorer being unable to proceed
// because the interference graph it built is inconsistent.
func AllocationFailureError(method, reason string) Diagnostic {
	return NewBuilder().In(AllocationFailure).ForMethod(method).
		Messagef("register allocation failed: %s", reason).Build()
}

// IOErrorDiagnostic reports a failure reading the class file or writing
// the assembly file - the one category not scoped to a single method.
func IOErrorDiagnostic(format string, args ...interface{}) Diagnostic {
	return NewBuilder().In(IOError).Messagef(format, args...).Build()
}
