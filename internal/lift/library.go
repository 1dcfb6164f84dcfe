package lift

import (
	"errors"
	"sort"

	"armlift/internal/disasm"
	"armlift/internal/il"
)

// SemanticsFunc builds the IL subgraph of one instruction. It never decides
// block termination.
type SemanticsFunc func(inst disasm.Inst) (*il.Graph, error)

// Library maps opcodes of one architecture to their semantics. It is
// immutable after construction and safe for concurrent use.
type Library struct {
	arch  string
	funcs map[disasm.Op]SemanticsFunc
}

// NewLibrary copies funcs into a new library.
func NewLibrary(arch string, funcs map[disasm.Op]SemanticsFunc) *Library {
	m := make(map[disasm.Op]SemanticsFunc, len(funcs))
	for op, fn := range funcs {
		m[op] = fn
	}
	return &Library{arch: arch, funcs: m}
}

// Arch returns the architecture name.
func (l *Library) Arch() string { return l.arch }

// Len returns the number of opcodes with semantics.
func (l *Library) Len() int { return len(l.funcs) }

// Has reports whether op has semantics.
func (l *Library) Has(op disasm.Op) bool {
	_, ok := l.funcs[op]
	return ok
}

// Ops returns the covered opcodes in ascending order.
func (l *Library) Ops() []disasm.Op {
	ops := make([]disasm.Op, 0, len(l.funcs))
	for op := range l.funcs {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Lift runs the semantics of inst and tags the result with its address.
func (l *Library) Lift(inst disasm.Inst) (*il.Graph, error) {
	fn, ok := l.funcs[inst.Op]
	if !ok {
		return nil, &UnsupportedError{Mnemonic: inst.Mnemonic, Addr: inst.Addr}
	}
	g, err := fn(inst)
	if err != nil {
		var oe *OperandError
		if errors.As(err, &oe) {
			return nil, err
		}
		return nil, &SemanticsError{Mnemonic: inst.Mnemonic, Addr: inst.Addr, Err: err}
	}
	if err := g.Validate(); err != nil {
		return nil, &SemanticsError{Mnemonic: inst.Mnemonic, Addr: inst.Addr, Err: err}
	}
	g.SetAddress(inst.Addr)
	return g, nil
}
