// Package il is the architecture-independent intermediate language emitted by
// the lifters: expressions over named scalars and constants, operations that
// update scalars and memory, and small control-flow graphs of operations.
package il

import (
	"errors"
	"fmt"
)

// ErrWidth is returned when operand widths of an expression do not agree.
var ErrWidth = errors.New("il: width mismatch")

// Expr is an IL expression. Every expression has a fixed bit width.
type Expr interface {
	Bits() int
	String() string
	isExpr()
}

// Const is a constant of a given width. Value is always masked to Width.
type Const struct {
	Value uint64
	Width int
}

// NewConst returns v truncated to bits.
func NewConst(v uint64, bits int) Const {
	return Const{Value: v & mask(bits), Width: bits}
}

func (c Const) Bits() int { return c.Width }

func (c Const) String() string {
	return fmt.Sprintf("0x%x:%d", c.Value, c.Width)
}

func (Const) isExpr() {}

// Scalar is a named variable, an architectural register, flag or temporary.
type Scalar struct {
	Name  string
	Width int
}

// NewScalar returns a scalar reference.
func NewScalar(name string, bits int) Scalar {
	return Scalar{Name: name, Width: bits}
}

func (s Scalar) Bits() int { return s.Width }

func (s Scalar) String() string {
	return fmt.Sprintf("%s:%d", s.Name, s.Width)
}

func (Scalar) isExpr() {}

// BinOp enumerates binary operators.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDivu
	OpModu
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmpeq
	OpCmpneq
	OpCmpltu
	OpCmplts
)

var binOpNames = [...]string{
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDivu:   "/",
	OpModu:   "%",
	OpAnd:    "&",
	OpOr:     "|",
	OpXor:    "^",
	OpShl:    "<<",
	OpShr:    ">>",
	OpCmpeq:  "==",
	OpCmpneq: "!=",
	OpCmpltu: "<",
	OpCmplts: "<s",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", int(op))
}

// IsCompare reports whether op yields a 1-bit result.
func (op BinOp) IsCompare() bool {
	return op >= OpCmpeq
}

// Binary applies a binary operator to two expressions of equal width.
type Binary struct {
	Op   BinOp
	L, R Expr
}

func (b Binary) Bits() int {
	if b.Op.IsCompare() {
		return 1
	}
	return b.L.Bits()
}

func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.L, b.Op, b.R)
}

func (Binary) isExpr() {}

// CastOp enumerates width-changing operators.
type CastOp uint8

const (
	OpZext CastOp = iota
	OpSext
	OpTrun
)

func (op CastOp) String() string {
	switch op {
	case OpZext:
		return "zext"
	case OpSext:
		return "sext"
	case OpTrun:
		return "trun"
	}
	return fmt.Sprintf("CastOp(%d)", int(op))
}

// Cast changes the width of X to Width.
type Cast struct {
	Op    CastOp
	Width int
	X     Expr
}

func (c Cast) Bits() int { return c.Width }

func (c Cast) String() string {
	return fmt.Sprintf("%s.%d(%s)", c.Op, c.Width, c.X)
}

func (Cast) isExpr() {}

func binary(op BinOp, l, r Expr) (Expr, error) {
	if l == nil || r == nil {
		return nil, errNil(op.String())
	}
	if l.Bits() != r.Bits() {
		return nil, fmt.Errorf("%w: %s %s %s", ErrWidth, l, op, r)
	}
	return Binary{Op: op, L: l, R: r}, nil
}

func Add(l, r Expr) (Expr, error)    { return binary(OpAdd, l, r) }
func Sub(l, r Expr) (Expr, error)    { return binary(OpSub, l, r) }
func Mul(l, r Expr) (Expr, error)    { return binary(OpMul, l, r) }
func Divu(l, r Expr) (Expr, error)   { return binary(OpDivu, l, r) }
func Modu(l, r Expr) (Expr, error)   { return binary(OpModu, l, r) }
func And(l, r Expr) (Expr, error)    { return binary(OpAnd, l, r) }
func Or(l, r Expr) (Expr, error)     { return binary(OpOr, l, r) }
func Xor(l, r Expr) (Expr, error)    { return binary(OpXor, l, r) }
func Shl(l, r Expr) (Expr, error)    { return binary(OpShl, l, r) }
func Shr(l, r Expr) (Expr, error)    { return binary(OpShr, l, r) }
func Cmpeq(l, r Expr) (Expr, error)  { return binary(OpCmpeq, l, r) }
func Cmpneq(l, r Expr) (Expr, error) { return binary(OpCmpneq, l, r) }
func Cmpltu(l, r Expr) (Expr, error) { return binary(OpCmpltu, l, r) }
func Cmplts(l, r Expr) (Expr, error) { return binary(OpCmplts, l, r) }

// Zext zero-extends x to bits. bits must be >= x.Bits().
func Zext(bits int, x Expr) (Expr, error) {
	if x == nil || bits < x.Bits() {
		return nil, fmt.Errorf("%w: zext.%d(%v)", ErrWidth, bits, x)
	}
	if bits == x.Bits() {
		return x, nil
	}
	return Cast{Op: OpZext, Width: bits, X: x}, nil
}

// Sext sign-extends x to bits. bits must be >= x.Bits().
func Sext(bits int, x Expr) (Expr, error) {
	if x == nil || bits < x.Bits() {
		return nil, fmt.Errorf("%w: sext.%d(%v)", ErrWidth, bits, x)
	}
	if bits == x.Bits() {
		return x, nil
	}
	return Cast{Op: OpSext, Width: bits, X: x}, nil
}

// Trun truncates x to bits. bits must be <= x.Bits().
func Trun(bits int, x Expr) (Expr, error) {
	if x == nil || bits > x.Bits() || bits <= 0 {
		return nil, fmt.Errorf("%w: trun.%d(%v)", ErrWidth, bits, x)
	}
	if bits == x.Bits() {
		return x, nil
	}
	return Cast{Op: OpTrun, Width: bits, X: x}, nil
}

// Not returns the logical complement of a 1-bit condition, built literally
// as cond == 0:1 so the two sides of a decision always partition the state
// space.
func Not(cond Expr) (Expr, error) {
	if cond == nil || cond.Bits() != 1 {
		return nil, fmt.Errorf("%w: not(%v) needs a 1-bit condition", ErrWidth, cond)
	}
	return Cmpeq(cond, NewConst(0, 1))
}

func errNil(op string) error {
	return fmt.Errorf("il: %s with nil operand", op)
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(bits) - 1
}
