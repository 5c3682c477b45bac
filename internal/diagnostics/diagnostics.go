// Package diagnostics collects the errors a compile run produces without
// letting one method's failure abort the rest of the module: each stage
// reports what went wrong through a Manager instead of returning early,
// so every method gets a chance to compile even when others fail.
package diagnostics

import (
	"fmt"
	"io"
)

// Category classifies a diagnostic by which stage of a method's pipeline
// raised it. The first three are fatal to the method that raised them;
// IOError is the exception, since it is raised outside any single method
// (reading the class file, writing the assembly) and is surfaced to the
// caller rather than merely skipping a method.
type Category int

const (
	// MalformedBytecode covers an unknown opcode, a truncated operand,
	// or a constant-pool index out of range.
	MalformedBytecode Category = iota
	// UnreachableTarget covers a branch displacement that does not land
	// on a tuple leader.
	UnreachableTarget
	// AllocationFailure covers the colorer being unable to proceed
	// because the interference graph it built is inconsistent.
	AllocationFailure
	// IOError covers a failure reading the class file or writing the
	// assembly file.
	IOError
)

func (c Category) String() string {
	switch c {
	case MalformedBytecode:
		return "malformed-bytecode"
	case UnreachableTarget:
		return "unreachable-target"
	case AllocationFailure:
		return "allocation-failure"
	case IOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// Diagnostic is one reported failure. Method is empty for an IOError,
// which is not scoped to any single method.
type Diagnostic struct {
	Category Category
	Method   string
	Message  string
}

func (d Diagnostic) Error() string {
	if d.Method == "" {
		return fmt.Sprintf("%s: %s", d.Category, d.Message)
	}

	return fmt.Sprintf("%s: %s: %s", d.Method, d.Category, d.Message)
}

// Manager accumulates diagnostics across an entire compile run. Nothing
// about adding a diagnostic stops the caller from continuing on to the
// next method; only the caller's own control flow decides that.
type Manager struct {
	diagnostics []Diagnostic
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add records one diagnostic.
func (m *Manager) Add(d Diagnostic) {
	m.diagnostics = append(m.diagnostics, d)
}

// HasErrors reports whether anything has been recorded.
func (m *Manager) HasErrors() bool {
	return len(m.diagnostics) > 0
}

// All returns every diagnostic recorded so far, in report order.
func (m *Manager) All() []Diagnostic {
	return m.diagnostics
}

// ByCategory filters the recorded diagnostics down to one category.
func (m *Manager) ByCategory(c Category) []Diagnostic {
	var out []Diagnostic

	for _, d := range m.diagnostics {
		if d.Category == c {
			out = append(out, d)
		}
	}

	return out
}

// WriteTo prints every recorded diagnostic to w, one per line, in the
// "Error: <message>" form the driver writes to stderr.
func (m *Manager) WriteTo(w io.Writer) {
	for _, d := range m.diagnostics {
		fmt.Fprintf(w, "Error: %s\n", d.Error())
	}
}
