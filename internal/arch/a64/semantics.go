package a64

import (
	"golang.org/x/arch/arm64/arm64asm"

	"armlift/internal/arch/nzcv"
	"armlift/internal/disasm"
	"armlift/internal/il"
	"armlift/internal/lift"
)

type semFunc func(b *il.Builder, inst disasm.Inst) error

func sem(fn semFunc) lift.SemanticsFunc {
	return func(inst disasm.Inst) (*il.Graph, error) {
		b := il.NewBuilder()
		if err := fn(b, inst); err != nil {
			return nil, err
		}
		return b.Graph()
	}
}

func op(o arm64asm.Op) disasm.Op { return disasm.Op(o) }

var library = lift.NewLibrary("a64", map[disasm.Op]lift.SemanticsFunc{
	op(arm64asm.NOP):   sem(nop),
	op(arm64asm.HINT):  sem(nop),
	op(arm64asm.YIELD): sem(nop),

	op(arm64asm.MOV):  sem(mov),
	op(arm64asm.MOVZ): sem(movz),
	op(arm64asm.MOVN): sem(movn),
	op(arm64asm.MOVK): sem(movk),

	op(arm64asm.ADD):  sem(arith(opAdd, false)),
	op(arm64asm.ADDS): sem(arith(opAdd, true)),
	op(arm64asm.SUB):  sem(arith(opSub, false)),
	op(arm64asm.SUBS): sem(arith(opSub, true)),
	op(arm64asm.CMP):  sem(compare(opSub)),
	op(arm64asm.CMN):  sem(compare(opAdd)),
	op(arm64asm.NEG):  sem(neg),

	op(arm64asm.AND):  sem(logical(il.OpAnd, false)),
	op(arm64asm.ANDS): sem(logical(il.OpAnd, true)),
	op(arm64asm.ORR):  sem(logical(il.OpOr, false)),
	op(arm64asm.EOR):  sem(logical(il.OpXor, false)),
	op(arm64asm.TST):  sem(tst),
	op(arm64asm.MVN):  sem(mvn),

	op(arm64asm.LSL): sem(shift(disasm.ShiftLSL)),
	op(arm64asm.LSR): sem(shift(disasm.ShiftLSR)),
	op(arm64asm.ASR): sem(shift(disasm.ShiftASR)),

	op(arm64asm.MUL):  sem(mul),
	op(arm64asm.UDIV): sem(udiv),

	op(arm64asm.ADR):  sem(adr),
	op(arm64asm.ADRP): sem(adr),

	op(arm64asm.LDR):  sem(load(0)),
	op(arm64asm.LDUR): sem(load(0)),
	op(arm64asm.LDRB): sem(load(8)),
	op(arm64asm.STR):  sem(store(0)),
	op(arm64asm.STUR): sem(store(0)),
	op(arm64asm.STRB): sem(store(8)),
	op(arm64asm.LDP):  sem(loadPair),
	op(arm64asm.STP):  sem(storePair),

	op(arm64asm.B):    sem(branch),
	op(arm64asm.CBZ):  sem(branch),
	op(arm64asm.CBNZ): sem(branch),
	op(arm64asm.TBZ):  sem(branch),
	op(arm64asm.TBNZ): sem(branch),
	op(arm64asm.BL):   sem(bl),
	op(arm64asm.BR):   sem(br),
	op(arm64asm.BLR):  sem(blr),
	op(arm64asm.RET):  sem(br),

	op(arm64asm.BRK): sem(brk),
})

// Library returns the A64 semantics library.
func Library() *lift.Library { return library }

func nop(*il.Builder, disasm.Inst) error { return nil }

func reg(inst disasm.Inst, n int) (disasm.Reg, error) {
	o, err := lift.Expect(inst, n, disasm.OperandReg)
	return o.Reg, err
}

func mov(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	s, err := lift.Expect(inst, 1, disasm.OperandReg, disasm.OperandImm)
	if err != nil {
		return err
	}
	write(b, d, value(b, s, d.Bits))
	return nil
}

func movz(b *il.Builder, inst disasm.Inst) error {
	return mov(b, inst)
}

func movn(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	s, err := lift.Expect(inst, 1, disasm.OperandImm)
	if err != nil {
		return err
	}
	write(b, d, b.Inv(value(b, s, d.Bits)))
	return nil
}

func movk(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	s, err := lift.Expect(inst, 1, disasm.OperandImm)
	if err != nil {
		return err
	}
	keep := ^(uint64(0xffff) << s.Shift.Amount)
	old := b.And(read(b, d), il.NewConst(keep, d.Bits))
	write(b, d, b.Or(old, value(b, s, d.Bits)))
	return nil
}

type arithOp uint8

const (
	opAdd arithOp = iota
	opSub
)

// addSub emits result = x op y into a temporary and sets flags from it
// before the destination is written.
func addSub(b *il.Builder, o arithOp, x, y il.Expr, bits int, flags bool) il.Expr {
	var r il.Expr
	if o == opAdd {
		r = b.Add(x, y)
	} else {
		r = b.Sub(x, y)
	}
	if !flags {
		return r
	}
	t := tmpResult(bits)
	b.Assign(t, r)
	if o == opAdd {
		nzcv.SetAdd(b, x, y, t)
	} else {
		nzcv.SetSub(b, x, y, t)
	}
	return t
}

func arith(o arithOp, flags bool) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		d, err := reg(inst, 0)
		if err != nil {
			return err
		}
		n, err := reg(inst, 1)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 2, disasm.OperandReg, disasm.OperandImm)
		if err != nil {
			return err
		}
		x := fit(b, read(b, n), d.Bits)
		y := value(b, m, d.Bits)
		write(b, d, addSub(b, o, x, y, d.Bits, flags))
		return nil
	}
}

func compare(o arithOp) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		n, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandReg, disasm.OperandImm)
		if err != nil {
			return err
		}
		addSub(b, o, read(b, n), value(b, m, n.Bits), n.Bits, true)
		return nil
	}
}

func neg(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	m, err := lift.Expect(inst, 1, disasm.OperandReg)
	if err != nil {
		return err
	}
	write(b, d, b.Neg(value(b, m, d.Bits)))
	return nil
}

func binop(b *il.Builder, o il.BinOp, x, y il.Expr) il.Expr {
	switch o {
	case il.OpAnd:
		return b.And(x, y)
	case il.OpOr:
		return b.Or(x, y)
	case il.OpXor:
		return b.Xor(x, y)
	case il.OpMul:
		return b.Mul(x, y)
	case il.OpDivu:
		return b.Divu(x, y)
	}
	return b.Add(x, y)
}

func logical(o il.BinOp, flags bool) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		d, err := reg(inst, 0)
		if err != nil {
			return err
		}
		n, err := reg(inst, 1)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 2, disasm.OperandReg, disasm.OperandImm)
		if err != nil {
			return err
		}
		r := binop(b, o, fit(b, read(b, n), d.Bits), value(b, m, d.Bits))
		if flags {
			t := tmpResult(d.Bits)
			b.Assign(t, r)
			nzcv.SetLogical(b, t)
			r = t
		}
		write(b, d, r)
		return nil
	}
}

func tst(b *il.Builder, inst disasm.Inst) error {
	n, err := reg(inst, 0)
	if err != nil {
		return err
	}
	m, err := lift.Expect(inst, 1, disasm.OperandReg, disasm.OperandImm)
	if err != nil {
		return err
	}
	t := tmpResult(n.Bits)
	b.Assign(t, b.And(read(b, n), value(b, m, n.Bits)))
	nzcv.SetLogical(b, t)
	return nil
}

func mvn(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	m, err := lift.Expect(inst, 1, disasm.OperandReg)
	if err != nil {
		return err
	}
	write(b, d, b.Inv(value(b, m, d.Bits)))
	return nil
}

func shift(kind disasm.ShiftKind) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		d, err := reg(inst, 0)
		if err != nil {
			return err
		}
		n, err := reg(inst, 1)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 2, disasm.OperandImm, disasm.OperandReg)
		if err != nil {
			return err
		}
		x := read(b, n)
		var amount il.Expr
		if m.Kind == disasm.OperandImm {
			amount = il.NewConst(m.Imm, d.Bits)
		} else {
			amount = b.And(read(b, m.Reg), il.NewConst(uint64(d.Bits-1), d.Bits))
		}
		var r il.Expr
		switch kind {
		case disasm.ShiftLSL:
			r = b.Shl(x, amount)
		case disasm.ShiftLSR:
			r = b.Shr(x, amount)
		default:
			r = b.Sar(x, amount)
		}
		write(b, d, r)
		return nil
	}
}

func threeReg(o il.BinOp) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		d, err := reg(inst, 0)
		if err != nil {
			return err
		}
		n, err := reg(inst, 1)
		if err != nil {
			return err
		}
		m, err := reg(inst, 2)
		if err != nil {
			return err
		}
		write(b, d, binop(b, o, read(b, n), read(b, m)))
		return nil
	}
}

var (
	mul  = threeReg(il.OpMul)
	udiv = threeReg(il.OpDivu)
)

func adr(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	l, err := lift.Expect(inst, 1, disasm.OperandImm)
	if err != nil {
		return err
	}
	write(b, d, il.NewConst(l.Imm, 64))
	return nil
}

// load handles LDR/LDUR (width 0: register width) and LDRB (width 8).
func load(width int) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		t, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandMem, disasm.OperandImm)
		if err != nil {
			return err
		}
		w := width
		if w == 0 {
			w = t.Bits
		}
		v := tmpValue(w)
		if m.Kind == disasm.OperandImm {
			b.Load(v, il.NewConst(m.Imm, 64))
			write(b, t, fit(b, v, t.Bits))
			return nil
		}
		ea, post := address(b, m.Mem)
		b.Load(v, ea)
		write(b, t, fit(b, v, t.Bits))
		post()
		return nil
	}
}

func store(width int) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		t, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandMem)
		if err != nil {
			return err
		}
		w := width
		if w == 0 {
			w = t.Bits
		}
		ea, post := address(b, m.Mem)
		b.Store(ea, fit(b, read(b, t), w))
		post()
		return nil
	}
}

func pairOperands(inst disasm.Inst) (disasm.Reg, disasm.Reg, disasm.Mem, error) {
	t1, err := reg(inst, 0)
	if err != nil {
		return disasm.Reg{}, disasm.Reg{}, disasm.Mem{}, err
	}
	t2, err := reg(inst, 1)
	if err != nil {
		return disasm.Reg{}, disasm.Reg{}, disasm.Mem{}, err
	}
	m, err := lift.Expect(inst, 2, disasm.OperandMem)
	if err != nil {
		return disasm.Reg{}, disasm.Reg{}, disasm.Mem{}, err
	}
	return t1, t2, m.Mem, nil
}

func loadPair(b *il.Builder, inst disasm.Inst) error {
	t1, t2, m, err := pairOperands(inst)
	if err != nil {
		return err
	}
	ea, post := address(b, m)
	v1 := il.NewScalar("value", t1.Bits)
	v2 := il.NewScalar("value2", t2.Bits)
	b.Load(v1, ea)
	b.Load(v2, b.Add(ea, il.NewConst(uint64(t1.Bits/8), 64)))
	write(b, t1, v1)
	write(b, t2, v2)
	post()
	return nil
}

func storePair(b *il.Builder, inst disasm.Inst) error {
	t1, t2, m, err := pairOperands(inst)
	if err != nil {
		return err
	}
	ea, post := address(b, m)
	b.Store(ea, read(b, t1))
	b.Store(b.Add(ea, il.NewConst(uint64(t1.Bits/8), 64)), read(b, t2))
	post()
	return nil
}

// condBranch decodes B, B.cond, CBZ, CBNZ, TBZ and TBNZ. cond is nil for an
// unconditional B.
func condBranch(b *il.Builder, inst disasm.Inst) (cond il.Expr, target uint64, err error) {
	var label disasm.Operand
	switch arm64asm.Op(inst.Op) {
	case arm64asm.B:
		first, ok := inst.Operand(0)
		if ok && first.Kind == disasm.OperandModifier {
			if label, err = lift.Expect(inst, 1, disasm.OperandImm); err != nil {
				return nil, 0, err
			}
			if first.Cond < nzcv.AL {
				cond = nzcv.Cond(b, first.Cond)
			}
			return cond, label.Imm, nil
		}
		if label, err = lift.Expect(inst, 0, disasm.OperandImm); err != nil {
			return nil, 0, err
		}
		return nil, label.Imm, nil

	case arm64asm.CBZ, arm64asm.CBNZ:
		r, err := reg(inst, 0)
		if err != nil {
			return nil, 0, err
		}
		if label, err = lift.Expect(inst, 1, disasm.OperandImm); err != nil {
			return nil, 0, err
		}
		zero := il.NewConst(0, r.Bits)
		if arm64asm.Op(inst.Op) == arm64asm.CBZ {
			cond = b.Cmpeq(read(b, r), zero)
		} else {
			cond = b.Cmpneq(read(b, r), zero)
		}
		return cond, label.Imm, nil

	case arm64asm.TBZ, arm64asm.TBNZ:
		r, err := reg(inst, 0)
		if err != nil {
			return nil, 0, err
		}
		bit, err := lift.Expect(inst, 1, disasm.OperandImm)
		if err != nil {
			return nil, 0, err
		}
		if label, err = lift.Expect(inst, 2, disasm.OperandImm); err != nil {
			return nil, 0, err
		}
		want := uint64(0)
		if arm64asm.Op(inst.Op) == arm64asm.TBNZ {
			want = 1
		}
		cond = b.Cmpeq(b.Bit(read(b, r), int(bit.Imm)), il.NewConst(want, 1))
		return cond, label.Imm, nil
	}
	return nil, 0, &lift.OperandError{Mnemonic: inst.Mnemonic, Addr: inst.Addr, Want: disasm.OperandImm}
}

func branch(b *il.Builder, inst disasm.Inst) error {
	cond, target, err := condBranch(b, inst)
	if err != nil {
		return err
	}
	jump := func() { b.Branch(il.NewConst(target, 64)) }
	if cond == nil {
		jump()
		return nil
	}
	b.Diamond(cond, jump)
	return nil
}

func bl(b *il.Builder, inst disasm.Inst) error {
	l, err := lift.Expect(inst, 0, disasm.OperandImm)
	if err != nil {
		return err
	}
	b.Assign(LR, il.NewConst(inst.Next(), 64))
	b.Branch(il.NewConst(l.Imm, 64))
	return nil
}

func br(b *il.Builder, inst disasm.Inst) error {
	n, err := reg(inst, 0)
	if err != nil {
		return err
	}
	b.Branch(read(b, n))
	return nil
}

func blr(b *il.Builder, inst disasm.Inst) error {
	n, err := reg(inst, 0)
	if err != nil {
		return err
	}
	b.Assign(tmpTarget, read(b, n))
	b.Assign(LR, il.NewConst(inst.Next(), 64))
	b.Branch(tmpTarget)
	return nil
}

func brk(b *il.Builder, inst disasm.Inst) error {
	imm, err := lift.Expect(inst, 0, disasm.OperandImm)
	if err != nil {
		return err
	}
	b.Intrinsic("brk", il.NewConst(imm.Imm, 16))
	return nil
}
