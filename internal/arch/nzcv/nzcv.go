// Package nzcv models the ARM condition flags and condition codes shared by
// A32 and A64.
package nzcv

import (
	"fmt"

	"armlift/internal/il"
)

// Flag scalars.
var (
	N = il.NewScalar("n", 1)
	Z = il.NewScalar("z", 1)
	C = il.NewScalar("c", 1)
	V = il.NewScalar("v", 1)
)

// Condition codes.
const (
	EQ uint8 = iota
	NE
	CS
	CC
	MI
	PL
	VS
	VC
	HI
	LS
	GE
	LT
	GT
	LE
	AL
	NV
)

var condNames = [...]string{"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "al", "nv"}

// Name returns the lower-case suffix of a condition code.
func Name(cond uint8) string {
	if int(cond) < len(condNames) {
		return condNames[cond]
	}
	return fmt.Sprintf("cond(%d)", cond)
}

// Cond returns the 1-bit guard for cond over the flag scalars. Odd codes
// below AL are built as the literal complement of the even code before them.
func Cond(b *il.Builder, cond uint8) il.Expr {
	if cond >= AL {
		if cond > NV {
			b.Fail(fmt.Errorf("nzcv: invalid condition %d", cond))
			return nil
		}
		return il.NewConst(1, 1)
	}
	var base il.Expr
	switch cond >> 1 {
	case 0: // EQ
		base = Z
	case 1: // CS
		base = C
	case 2: // MI
		base = N
	case 3: // VS
		base = V
	case 4: // HI
		base = b.And(C, b.Not(Z))
	case 5: // GE
		base = b.Cmpeq(N, V)
	case 6: // GT
		base = b.And(b.Not(Z), b.Cmpeq(N, V))
	}
	if cond&1 != 0 {
		return b.Not(base)
	}
	return base
}

// SetNZ assigns N and Z from result.
func SetNZ(b *il.Builder, result il.Expr) {
	if result == nil {
		b.Fail(fmt.Errorf("nzcv: nil result"))
		return
	}
	b.Assign(N, b.Bit(result, result.Bits()-1))
	b.Assign(Z, b.Cmpeq(result, il.NewConst(0, result.Bits())))
}

// SetAdd assigns all four flags for result = x + y.
func SetAdd(b *il.Builder, x, y, result il.Expr) {
	SetNZ(b, result)
	if result == nil {
		return
	}
	w := result.Bits()
	b.Assign(C, b.Cmpltu(result, x))
	ov := b.And(b.Xor(x, result), b.Xor(y, result))
	b.Assign(V, b.Bit(ov, w-1))
}

// SetAddCarry assigns all four flags for result = x + y + carry.
func SetAddCarry(b *il.Builder, x, y, carry, result il.Expr) {
	SetNZ(b, result)
	if result == nil {
		return
	}
	w := result.Bits()
	wrapped := b.Cmpltu(result, x)
	equal := b.And(carry, b.Cmpeq(result, x))
	b.Assign(C, b.Or(wrapped, equal))
	ov := b.And(b.Xor(x, result), b.Xor(y, result))
	b.Assign(V, b.Bit(ov, w-1))
}

// SetSub assigns all four flags for result = x - y. C is the ARM
// "no borrow" flag.
func SetSub(b *il.Builder, x, y, result il.Expr) {
	SetNZ(b, result)
	if result == nil {
		return
	}
	w := result.Bits()
	b.Assign(C, b.Not(b.Cmpltu(x, y)))
	ov := b.And(b.Xor(x, y), b.Xor(x, result))
	b.Assign(V, b.Bit(ov, w-1))
}

// SetLogical assigns N and Z from result and clears C and V (A64 ANDS/TST).
func SetLogical(b *il.Builder, result il.Expr) {
	SetNZ(b, result)
	b.Assign(C, il.NewConst(0, 1))
	b.Assign(V, il.NewConst(0, 1))
}
