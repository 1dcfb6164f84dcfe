package a32

import (
	"fmt"

	"armlift/internal/arch/nzcv"
	"armlift/internal/disasm"
	"armlift/internal/il"
)

// Architectural state: r0..r12, sp, lr and pc are 32-bit scalars.

var (
	// PC receives the target of every PC write before the branch.
	PC = il.NewScalar("pc", 32)
	// LR is the link register.
	LR = il.NewScalar("lr", 32)
	SP = il.NewScalar("sp", 32)

	tmpTarget = il.NewScalar("target", 32)
	tmpEA     = il.NewScalar("ea", 32)
)

func tmpResult() il.Scalar        { return il.NewScalar("result", 32) }
func tmpValue(bits int) il.Scalar { return il.NewScalar("value", bits) }

func isPC(r disasm.Reg) bool { return r.Name == "pc" }

var gprs = map[string]bool{
	"r0": true, "r1": true, "r2": true, "r3": true, "r4": true, "r5": true, "r6": true,
	"r7": true, "r8": true, "r9": true, "r10": true, "r11": true, "r12": true,
	"sp": true, "lr": true, "pc": true,
}

func checkGPR(b *il.Builder, r disasm.Reg) bool {
	if !gprs[r.Name] {
		b.Fail(fmt.Errorf("a32: register %s is not a general-purpose register", r.Name))
		return false
	}
	return true
}

// read returns the value of r as seen by inst. PC reads observe the
// instruction address plus 8.
func read(b *il.Builder, inst disasm.Inst, r disasm.Reg) il.Expr {
	if !checkGPR(b, r) {
		return nil
	}
	if isPC(r) {
		return il.NewConst(inst.Addr+pcOffset, 32)
	}
	return il.NewScalar(r.Name, 32)
}

// write assigns v to r. Writing PC assigns the pc scalar and branches to it.
func write(b *il.Builder, r disasm.Reg, v il.Expr) {
	if !checkGPR(b, r) {
		return
	}
	if isPC(r) {
		b.Assign(PC, v)
		b.Branch(PC)
		return
	}
	b.Assign(il.NewScalar(r.Name, 32), v)
}

func carry(b *il.Builder) il.Expr { return b.Zext(32, nzcv.C) }

// shifted reads r with a constant shift applied and returns the shifter
// carry-out alongside the value. A nil carry-out leaves C unchanged.
func shifted(b *il.Builder, inst disasm.Inst, r disasm.Reg, sh disasm.Shift) (il.Expr, il.Expr) {
	x := read(b, inst, r)
	switch sh.Kind {
	case disasm.ShiftNone:
		return x, nil
	case disasm.ShiftLSL, disasm.ShiftLSR, disasm.ShiftASR, disasm.ShiftROR, disasm.ShiftRRX:
		return shiftBy(b, sh.Kind, x, il.NewConst(uint64(sh.Amount), 32))
	}
	b.Fail(fmt.Errorf("a32: unsupported shift %s", sh.Kind))
	return nil, nil
}

// shiftBy shifts x by amount, which may be anything from 0 to 255, and
// returns the result with the shifter carry-out: the last bit shifted out.
// A zero amount leaves C unchanged; a constant zero gives a nil carry-out.
func shiftBy(b *il.Builder, kind disasm.ShiftKind, x, amount il.Expr) (il.Expr, il.Expr) {
	if x == nil || amount == nil {
		b.Fail(fmt.Errorf("a32: %s with nil operand", kind))
		return nil, nil
	}
	k, static := amount.(il.Const)
	var r, c il.Expr
	wide := b.Zext(64, amount)
	switch kind {
	case disasm.ShiftLSL:
		r = b.Shl(x, amount)
		c = b.Bit(b.Shl(b.Zext(64, x), wide), 32)
	case disasm.ShiftLSR:
		r = b.Shr(x, amount)
		c = b.Bit(b.Shr(b.Shl(b.Zext(64, x), il.NewConst(1, 64)), wide), 0)
	case disasm.ShiftASR:
		// Amounts past 32 fill with the sign bit exactly like 32.
		full := il.NewConst(32, 32)
		n := amount
		switch {
		case static && k.Value > 32:
			n = full
		case !static:
			n = b.Select(b.Cmpltu(amount, full), amount, full)
		}
		r = b.Sar(x, n)
		c = b.Bit(b.Shr(b.Shl(b.Sext(64, x), il.NewConst(1, 64)), b.Zext(64, n)), 0)
	case disasm.ShiftROR:
		if static {
			r = b.Ror(x, il.NewConst(k.Value&31, 32))
		} else {
			r = b.Ror(x, b.And(amount, il.NewConst(31, 32)))
		}
		c = b.Bit(r, 31)
	case disasm.ShiftRRX:
		top := b.Shl(carry(b), il.NewConst(31, 32))
		return b.Or(b.Shr(x, il.NewConst(1, 32)), top), b.Bit(x, 0)
	default:
		b.Fail(fmt.Errorf("a32: unsupported shift %s", kind))
		return nil, nil
	}
	if static {
		if k.Value == 0 {
			return r, nil
		}
		return r, c
	}
	return r, b.Select(b.Cmpeq(amount, il.NewConst(0, 32)), nzcv.C, c)
}

// immCarry returns the carry-out of a data-processing modified immediate:
// bit 31 of the value when the encoding rotates it, nil otherwise.
func immCarry(inst disasm.Inst, imm uint64) il.Expr {
	if inst.Raw>>25&7 != 1 || inst.Raw>>8&0xf == 0 {
		return nil
	}
	return il.NewConst(imm>>31&1, 1)
}

// value evaluates an immediate or shifted register operand and its carry-out.
func value(b *il.Builder, inst disasm.Inst, op disasm.Operand) (il.Expr, il.Expr) {
	switch op.Kind {
	case disasm.OperandImm:
		return il.NewConst(op.Imm, 32), immCarry(inst, op.Imm)
	case disasm.OperandReg:
		return shifted(b, inst, op.Reg, op.Shift)
	}
	b.Fail(fmt.Errorf("a32: operand %q is not a value", op.Text))
	return nil, nil
}

// address computes the effective address of m. The returned function applies
// base writeback and must run after the access.
func address(b *il.Builder, inst disasm.Inst, m disasm.Mem) (il.Expr, func()) {
	base := read(b, inst, m.Base)
	var off il.Expr
	if m.HasIndex {
		off, _ = shifted(b, inst, m.Index, m.Shift)
	} else {
		off = il.NewConst(uint64(m.Offset), 32)
	}
	apply := func(x il.Expr) il.Expr {
		if m.Negate {
			return b.Sub(x, off)
		}
		return b.Add(x, off)
	}
	switch m.Mode {
	case disasm.AddrPreIndex:
		b.Assign(tmpEA, apply(base))
		return tmpEA, func() { write(b, m.Base, tmpEA) }
	case disasm.AddrPostIndex:
		b.Assign(tmpEA, base)
		return tmpEA, func() { write(b, m.Base, apply(tmpEA)) }
	}
	return apply(base), func() {}
}
