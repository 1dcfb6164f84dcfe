package lift

import (
	"fmt"

	"armlift/internal/il"
)

// Mode is the instruction-set state control continues in.
type Mode uint8

const (
	// ModeSame keeps the current instruction set.
	ModeSame Mode = iota
	// ModeARM switches to A32.
	ModeARM
	// ModeThumb switches to T32.
	ModeThumb
	// ModeInterwork selects the state from bit 0 of the target value:
	// set means Thumb, clear means ARM. See Successor.Resolve.
	ModeInterwork
)

func (m Mode) String() string {
	switch m {
	case ModeSame:
		return "same"
	case ModeARM:
		return "arm"
	case ModeThumb:
		return "thumb"
	case ModeInterwork:
		return "interwork"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Successor describes one way control leaves a block. Exactly one of Address
// (static) and Target (register-indirect, evaluated over the state after the
// last instruction) is meaningful: Target is nil for static successors.
type Successor struct {
	Address uint64
	Target  il.Expr
	Mode    Mode
	Guard   il.Expr // nil when unconditional
}

// Static reports whether the successor address is known.
func (s Successor) Static() bool { return s.Target == nil }

// Resolve applies the successor's mode to a concrete target value, returning
// the fetch address and the resulting instruction-set state.
func (s Successor) Resolve(value uint64) (uint64, Mode) {
	if s.Mode != ModeInterwork {
		return value, s.Mode
	}
	if value&1 != 0 {
		return value &^ 1, ModeThumb
	}
	return value, ModeARM
}

func (s Successor) String() string {
	var where string
	if s.Static() {
		where = fmt.Sprintf("0x%x", s.Address)
	} else {
		where = s.Target.String()
	}
	if s.Mode != ModeSame {
		where += " [" + s.Mode.String() + "]"
	}
	if s.Guard != nil {
		where += " if " + s.Guard.String()
	}
	return where
}

// Transfer classifies how a block ends.
type Transfer uint8

const (
	TransferNone        Transfer = iota // not a block terminator
	TransferFallthrough                 // block ended at a boundary or budget
	TransferDirect                      // unconditional jump to a known address
	TransferIndirect                    // unconditional jump through a register or memory
	TransferConditional                 // taken and fallthrough, with complementary guards
)

func (t Transfer) String() string {
	switch t {
	case TransferNone:
		return "none"
	case TransferFallthrough:
		return "fallthrough"
	case TransferDirect:
		return "direct"
	case TransferIndirect:
		return "indirect"
	case TransferConditional:
		return "conditional"
	}
	return fmt.Sprintf("Transfer(%d)", int(t))
}

// Successors is the closed set of block successors: empty, a single
// unconditional successor, or a taken/fallthrough pair. The zero value is
// empty and means the instruction does not terminate the block.
type Successors struct {
	kind  Transfer
	n     int
	items [2]Successor
}

// Jump returns a single unconditional successor. Any guard on s is cleared.
func Jump(s Successor) Successors {
	s.Guard = nil
	kind := TransferDirect
	if !s.Static() {
		kind = TransferIndirect
	}
	return Successors{kind: kind, n: 1, items: [2]Successor{s}}
}

// Fallthrough returns a single unconditional successor at addr.
func Fallthrough(addr uint64) Successors {
	return Successors{kind: TransferFallthrough, n: 1, items: [2]Successor{{Address: addr}}}
}

// Branch returns the taken successor guarded by cond followed by the
// fallthrough successor at next guarded by the complement of cond.
func Branch(cond il.Expr, taken Successor, next uint64) (Successors, error) {
	not, err := il.Not(cond)
	if err != nil {
		return Successors{}, err
	}
	taken.Guard = cond
	return Successors{
		kind: TransferConditional,
		n:    2,
		items: [2]Successor{
			taken,
			{Address: next, Guard: not},
		},
	}, nil
}

// Len returns 0, 1 or 2.
func (s Successors) Len() int { return s.n }

// Kind returns the transfer classification.
func (s Successors) Kind() Transfer { return s.kind }

// Terminates reports whether the block ends here.
func (s Successors) Terminates() bool { return s.n > 0 }

// Conditional reports whether the set is a guarded taken/fallthrough pair.
func (s Successors) Conditional() bool { return s.kind == TransferConditional }

// All returns the successors, taken before fallthrough.
func (s Successors) All() []Successor {
	out := make([]Successor, s.n)
	copy(out, s.items[:s.n])
	return out
}

// Taken returns the first successor.
func (s Successors) Taken() (Successor, bool) {
	if s.n == 0 {
		return Successor{}, false
	}
	return s.items[0], true
}

// NotTaken returns the fallthrough successor of a conditional pair.
func (s Successors) NotTaken() (Successor, bool) {
	if s.n != 2 {
		return Successor{}, false
	}
	return s.items[1], true
}
