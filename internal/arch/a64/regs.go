package a64

import (
	"fmt"

	"armlift/internal/disasm"
	"armlift/internal/il"
)

// Architectural state: x0..x30 and sp are 64-bit scalars. W registers are
// the low halves; writing one zero-extends into the X register.

// Temporaries used inside a single instruction graph.
var (
	tmpTarget = il.NewScalar("target", 64)
	tmpEA     = il.NewScalar("ea", 64)
)

func tmpResult(bits int) il.Scalar { return il.NewScalar("result", bits) }
func tmpValue(bits int) il.Scalar  { return il.NewScalar("value", bits) }

// LR is the link register.
var LR = il.NewScalar("x30", 64)

func scalar(r disasm.Reg) il.Scalar { return il.NewScalar(r.Name, 64) }

func checkGPR(b *il.Builder, r disasm.Reg) bool {
	if r.Bits != 32 && r.Bits != 64 {
		b.Fail(fmt.Errorf("a64: register %s is not a general-purpose register", r.Name))
		return false
	}
	return true
}

func read(b *il.Builder, r disasm.Reg) il.Expr {
	if !checkGPR(b, r) {
		return nil
	}
	if r.Zero {
		return il.NewConst(0, r.Bits)
	}
	if r.Bits == 32 {
		return b.Trun(32, scalar(r))
	}
	return scalar(r)
}

func write(b *il.Builder, r disasm.Reg, v il.Expr) {
	if !checkGPR(b, r) || r.Zero {
		return
	}
	if r.Bits == 32 {
		v = b.Zext(64, v)
	}
	b.Assign(scalar(r), v)
}

// fit zero-extends or truncates x to bits.
func fit(b *il.Builder, x il.Expr, bits int) il.Expr {
	if x == nil {
		return nil
	}
	switch {
	case x.Bits() < bits:
		return b.Zext(bits, x)
	case x.Bits() > bits:
		return b.Trun(bits, x)
	}
	return x
}

// shifted reads r at bits with its shift or extend applied.
func shifted(b *il.Builder, r disasm.Reg, sh disasm.Shift, bits int) il.Expr {
	x := read(b, r)
	amount := il.NewConst(uint64(sh.Amount), bits)
	switch sh.Kind {
	case disasm.ShiftNone:
		return fit(b, x, bits)
	case disasm.ShiftLSL:
		return b.Shl(fit(b, x, bits), amount)
	case disasm.ShiftLSR:
		return b.Shr(fit(b, x, bits), amount)
	case disasm.ShiftASR:
		return b.Sar(fit(b, x, bits), amount)
	case disasm.ShiftROR:
		return b.Ror(fit(b, x, bits), amount)
	case disasm.ExtendUXTB, disasm.ExtendUXTH, disasm.ExtendUXTW, disasm.ExtendUXTX,
		disasm.ExtendSXTB, disasm.ExtendSXTH, disasm.ExtendSXTW, disasm.ExtendSXTX:
		return b.Shl(extend(b, x, sh.Kind, bits), amount)
	}
	b.Fail(fmt.Errorf("a64: unsupported shift %s", sh.Kind))
	return nil
}

func extend(b *il.Builder, x il.Expr, kind disasm.ShiftKind, bits int) il.Expr {
	var from int
	signed := false
	switch kind {
	case disasm.ExtendUXTB:
		from = 8
	case disasm.ExtendUXTH:
		from = 16
	case disasm.ExtendUXTW:
		from = 32
	case disasm.ExtendUXTX:
		from = 64
	case disasm.ExtendSXTB:
		from, signed = 8, true
	case disasm.ExtendSXTH:
		from, signed = 16, true
	case disasm.ExtendSXTW:
		from, signed = 32, true
	case disasm.ExtendSXTX:
		from, signed = 64, true
	}
	if x == nil {
		return nil
	}
	if from > x.Bits() {
		from = x.Bits()
	}
	narrow := b.Trun(from, x)
	if from >= bits {
		return fit(b, narrow, bits)
	}
	if signed {
		return b.Sext(bits, narrow)
	}
	return b.Zext(bits, narrow)
}

// value evaluates an immediate or (shifted) register operand at bits.
func value(b *il.Builder, op disasm.Operand, bits int) il.Expr {
	switch op.Kind {
	case disasm.OperandImm:
		v := op.Imm
		if op.Shift.Kind == disasm.ShiftLSL {
			v <<= op.Shift.Amount
		}
		return il.NewConst(v, bits)
	case disasm.OperandReg:
		return shifted(b, op.Reg, op.Shift, bits)
	}
	b.Fail(fmt.Errorf("a64: operand %q is not a value", op.Text))
	return nil
}

// address computes the effective address of m. The returned function applies
// base writeback and must run after the access.
func address(b *il.Builder, m disasm.Mem) (il.Expr, func()) {
	base := read(b, m.Base)
	var off il.Expr
	if m.HasIndex {
		off = shifted(b, m.Index, m.Shift, 64)
	} else {
		off = il.NewConst(uint64(m.Offset), 64)
	}
	sum := func() il.Expr {
		if m.Negate {
			return b.Sub(base, off)
		}
		return b.Add(base, off)
	}
	switch m.Mode {
	case disasm.AddrPreIndex:
		ea := tmpEA
		b.Assign(ea, sum())
		return ea, func() { write(b, m.Base, ea) }
	case disasm.AddrPostIndex:
		ea := tmpEA
		b.Assign(ea, base)
		return ea, func() { write(b, m.Base, b.Add(ea, off)) }
	}
	return sum(), func() {}
}
