package a32

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"

	"armlift/internal/arch/nzcv"
	"armlift/internal/disasm"
	"armlift/internal/il"
	"armlift/internal/lift"
)

type semFunc func(b *il.Builder, inst disasm.Inst) error

// sem wraps fn in a guarded diamond when inst is conditionally executed.
func sem(fn semFunc) lift.SemanticsFunc {
	return func(inst disasm.Inst) (*il.Graph, error) {
		b := il.NewBuilder()
		var err error
		body := func() { err = fn(b, inst) }
		if inst.Conditional() {
			b.Diamond(nzcv.Cond(b, inst.Cond), body)
		} else {
			body()
		}
		if err != nil {
			return nil, err
		}
		return b.Graph()
	}
}

func op(o armasm.Op) disasm.Op { return disasm.Op(o) }

var library = lift.NewLibrary("a32", map[disasm.Op]lift.SemanticsFunc{
	op(armasm.ADD): sem(arith(aluAdd)),
	op(armasm.ADC): sem(arith(aluAdc)),
	op(armasm.SUB): sem(arith(aluSub)),
	op(armasm.RSB): sem(arith(aluRsb)),
	op(armasm.AND): sem(arith(aluAnd)),
	op(armasm.ORR): sem(arith(aluOrr)),
	op(armasm.EOR): sem(arith(aluEor)),
	op(armasm.BIC): sem(arith(aluBic)),

	op(armasm.CMP): sem(test(aluSub)),
	op(armasm.CMN): sem(test(aluAdd)),
	op(armasm.TST): sem(test(aluAnd)),
	op(armasm.TEQ): sem(test(aluEor)),

	op(armasm.MOV): sem(mov(false)),
	op(armasm.MVN): sem(mov(true)),
	op(armasm.LSL): sem(shift(disasm.ShiftLSL)),
	op(armasm.LSR): sem(shift(disasm.ShiftLSR)),
	op(armasm.ASR): sem(shift(disasm.ShiftASR)),
	op(armasm.ROR): sem(shift(disasm.ShiftROR)),
	op(armasm.RRX): sem(shift(disasm.ShiftRRX)),
	op(armasm.MUL): sem(mul),
	op(armasm.CLZ): sem(clz),
	op(armasm.BFC): sem(bfc),
	op(armasm.BFI): sem(bfi),

	op(armasm.LDR):  sem(load(32)),
	op(armasm.LDRB): sem(load(8)),
	op(armasm.STR):  sem(store(32)),
	op(armasm.STRB): sem(store(8)),
	op(armasm.PUSH): sem(push),
	op(armasm.POP):  sem(pop),

	op(armasm.B):   sem(branch),
	op(armasm.BL):  sem(bl),
	op(armasm.BLX): sem(blx),
	op(armasm.BX):  sem(bx),
	op(armasm.BXJ): sem(bx),

	op(armasm.NOP):  sem(nop),
	op(armasm.BKPT): sem(bkpt),
})

// Library returns the A32 semantics library.
func Library() *lift.Library { return library }

func nop(*il.Builder, disasm.Inst) error { return nil }

func reg(inst disasm.Inst, n int) (disasm.Reg, error) {
	o, err := lift.Expect(inst, n, disasm.OperandReg)
	return o.Reg, err
}

type aluOp uint8

const (
	aluAdd aluOp = iota
	aluAdc
	aluSub
	aluRsb
	aluAnd
	aluOrr
	aluEor
	aluBic
)

// alu computes x op y. With flags set the result goes through a temporary
// and NZCV are updated from it. Logical operations take C from the shifter
// carry-out c, or leave it alone when c is nil, and never touch V.
func alu(b *il.Builder, o aluOp, x, y, c il.Expr, flags bool) il.Expr {
	var r il.Expr
	switch o {
	case aluAdd:
		r = b.Add(x, y)
	case aluAdc:
		r = b.Add(b.Add(x, y), carry(b))
	case aluSub:
		r = b.Sub(x, y)
	case aluRsb:
		r = b.Sub(y, x)
	case aluAnd:
		r = b.And(x, y)
	case aluOrr:
		r = b.Or(x, y)
	case aluEor:
		r = b.Xor(x, y)
	case aluBic:
		r = b.And(x, b.Inv(y))
	}
	if !flags {
		return r
	}
	y = pin(b, y)
	t := tmpResult()
	if o == aluAdc {
		// C is consumed before it is overwritten.
		cin := il.NewScalar("carry", 1)
		b.Assign(cin, nzcv.C)
		b.Assign(t, b.Add(b.Add(x, y), b.Zext(32, cin)))
		nzcv.SetAddCarry(b, x, y, cin, t)
		return t
	}
	b.Assign(t, r)
	switch o {
	case aluAdd:
		nzcv.SetAdd(b, x, y, t)
	case aluSub:
		nzcv.SetSub(b, x, y, t)
	case aluRsb:
		nzcv.SetSub(b, y, x, t)
	default:
		nzcv.SetNZ(b, t)
		if c != nil {
			b.Assign(nzcv.C, c)
		}
	}
	return t
}

// pin assigns a compound operand to a temporary so that later flag updates
// read the value it had before C changed.
func pin(b *il.Builder, e il.Expr) il.Expr {
	switch e.(type) {
	case nil, il.Const, il.Scalar:
		return e
	}
	t := il.NewScalar("operand", e.Bits())
	b.Assign(t, e)
	return t
}

func arith(o aluOp) semFunc {
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
		y, c := value(b, inst, m)
		write(b, d, alu(b, o, read(b, inst, n), y, c, inst.SetFlags))
		return nil
	}
}

func test(o aluOp) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		n, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandReg, disasm.OperandImm)
		if err != nil {
			return err
		}
		y, c := value(b, inst, m)
		alu(b, o, read(b, inst, n), y, c, true)
		return nil
	}
}

func mov(invert bool) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		d, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandReg, disasm.OperandImm)
		if err != nil {
			return err
		}
		v, c := value(b, inst, m)
		if invert {
			v = b.Inv(v)
		}
		if inst.SetFlags {
			t := tmpResult()
			b.Assign(t, v)
			nzcv.SetNZ(b, t)
			if c != nil {
				b.Assign(nzcv.C, c)
			}
			v = t
		}
		write(b, d, v)
		return nil
	}
}

// shift covers LSL, LSR, ASR and ROR by an immediate or by the bottom byte of
// a register, and RRX.
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
		var amount il.Expr = il.NewConst(1, 32)
		if kind != disasm.ShiftRRX {
			m, err := lift.Expect(inst, 2, disasm.OperandImm, disasm.OperandReg)
			if err != nil {
				return err
			}
			if m.Kind == disasm.OperandImm {
				amount = il.NewConst(m.Imm, 32)
			} else {
				amount = b.And(read(b, inst, m.Reg), il.NewConst(0xff, 32))
			}
		}
		r, c := shiftBy(b, kind, read(b, inst, n), amount)
		if inst.SetFlags {
			t := tmpResult()
			b.Assign(t, r)
			nzcv.SetNZ(b, t)
			if c != nil {
				b.Assign(nzcv.C, c)
			}
			r = t
		}
		write(b, d, r)
		return nil
	}
}

func mul(b *il.Builder, inst disasm.Inst) error {
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
	r := b.Mul(read(b, inst, n), read(b, inst, m))
	if inst.SetFlags {
		t := tmpResult()
		b.Assign(t, r)
		nzcv.SetNZ(b, t)
		r = t
	}
	write(b, d, r)
	return nil
}

// clz counts leading zeros with a binary search over halving windows.
func clz(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	m, err := reg(inst, 1)
	if err != nil {
		return err
	}
	x := il.NewScalar("clz", 32)
	n := tmpResult()
	b.Assign(x, read(b, inst, m))
	b.Assign(n, il.NewConst(0, 32))
	for _, w := range []uint64{16, 8, 4, 2, 1} {
		// top w bits clear: count them and shift them out
		empty := b.Cmpeq(b.Shr(x, il.NewConst(32-w, 32)), il.NewConst(0, 32))
		b.Assign(n, b.Add(n, b.Select(empty, il.NewConst(w, 32), il.NewConst(0, 32))))
		b.Assign(x, b.Select(empty, b.Shl(x, il.NewConst(w, 32)), x))
	}
	// x is zero only when the source was
	zero := b.Cmpeq(x, il.NewConst(0, 32))
	write(b, d, b.Add(n, b.Select(zero, il.NewConst(1, 32), il.NewConst(0, 32))))
	return nil
}

// field reads the lsb and width immediates of BFC and BFI starting at
// operand i and returns the mask they select.
func field(inst disasm.Inst, i int) (uint64, error) {
	lsb, err := lift.Expect(inst, i, disasm.OperandImm)
	if err != nil {
		return 0, err
	}
	width, err := lift.Expect(inst, i+1, disasm.OperandImm)
	if err != nil {
		return 0, err
	}
	if width.Imm == 0 || lsb.Imm+width.Imm > 32 {
		return 0, fmt.Errorf("a32: bitfield #%d, #%d out of range", lsb.Imm, width.Imm)
	}
	return (uint64(1)<<width.Imm - 1) << lsb.Imm, nil
}

func bfc(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	mask, err := field(inst, 1)
	if err != nil {
		return err
	}
	write(b, d, b.And(read(b, inst, d), il.NewConst(^mask, 32)))
	return nil
}

func bfi(b *il.Builder, inst disasm.Inst) error {
	d, err := reg(inst, 0)
	if err != nil {
		return err
	}
	n, err := reg(inst, 1)
	if err != nil {
		return err
	}
	mask, err := field(inst, 2)
	if err != nil {
		return err
	}
	lsb, _ := inst.Operand(2)
	ins := b.And(b.Shl(read(b, inst, n), il.NewConst(lsb.Imm, 32)), il.NewConst(mask, 32))
	keep := b.And(read(b, inst, d), il.NewConst(^mask, 32))
	write(b, d, b.Or(keep, ins))
	return nil
}

func load(width int) semFunc {
	return func(b *il.Builder, inst disasm.Inst) error {
		t, err := reg(inst, 0)
		if err != nil {
			return err
		}
		m, err := lift.Expect(inst, 1, disasm.OperandMem)
		if err != nil {
			return err
		}
		v := tmpValue(width)
		ea, post := address(b, inst, m.Mem)
		b.Load(v, ea)
		post()
		if width < 32 {
			write(b, t, b.Zext(32, v))
		} else {
			write(b, t, v)
		}
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
		ea, post := address(b, inst, m.Mem)
		v := read(b, inst, t)
		if width < 32 {
			v = b.Trun(width, v)
		}
		b.Store(ea, v)
		post()
		return nil
	}
}

func regList(inst disasm.Inst) ([]disasm.Reg, error) {
	l, err := lift.Expect(inst, 0, disasm.OperandModifier)
	if err != nil {
		return nil, err
	}
	if len(l.Regs) == 0 {
		return nil, &lift.OperandError{Mnemonic: inst.Mnemonic, Addr: inst.Addr, Want: disasm.OperandModifier}
	}
	return l.Regs, nil
}

// push stores the list at descending addresses below sp, lowest register at
// the lowest address.
func push(b *il.Builder, inst disasm.Inst) error {
	regs, err := regList(inst)
	if err != nil {
		return err
	}
	size := uint64(4 * len(regs))
	b.Assign(tmpEA, b.Sub(SP, il.NewConst(size, 32)))
	for i, r := range regs {
		b.Store(b.Add(tmpEA, il.NewConst(uint64(4*i), 32)), read(b, inst, r))
	}
	b.Assign(SP, tmpEA)
	return nil
}

// pop loads the list from sp upward. A popped pc is written last, after sp.
func pop(b *il.Builder, inst disasm.Inst) error {
	regs, err := regList(inst)
	if err != nil {
		return err
	}
	b.Assign(tmpEA, SP)
	var pc *disasm.Reg
	for i, r := range regs {
		addr := b.Add(tmpEA, il.NewConst(uint64(4*i), 32))
		if isPC(r) {
			pc = &regs[i]
			b.Load(tmpValue(32), addr)
			continue
		}
		if !checkGPR(b, r) {
			return b.Err()
		}
		b.Load(il.NewScalar(r.Name, 32), addr)
	}
	b.Assign(SP, b.Add(tmpEA, il.NewConst(uint64(4*len(regs)), 32)))
	if pc != nil {
		write(b, *pc, tmpValue(32))
	}
	return nil
}

func label(inst disasm.Inst) (uint64, error) {
	l, err := lift.Expect(inst, 0, disasm.OperandImm)
	return l.Imm, err
}

func branch(b *il.Builder, inst disasm.Inst) error {
	target, err := label(inst)
	if err != nil {
		return err
	}
	b.Branch(il.NewConst(target, 32))
	return nil
}

func bl(b *il.Builder, inst disasm.Inst) error {
	target, err := label(inst)
	if err != nil {
		return err
	}
	b.Assign(LR, il.NewConst(inst.Next(), 32))
	b.Branch(il.NewConst(target, 32))
	return nil
}

// blx covers both the immediate form, which always enters Thumb, and the
// register form.
func blx(b *il.Builder, inst disasm.Inst) error {
	t, err := lift.Expect(inst, 0, disasm.OperandImm, disasm.OperandReg)
	if err != nil {
		return err
	}
	if t.Kind == disasm.OperandImm {
		b.Assign(LR, il.NewConst(inst.Next(), 32))
		b.Branch(il.NewConst(t.Imm|1, 32))
		return nil
	}
	b.Assign(tmpTarget, read(b, inst, t.Reg))
	b.Assign(LR, il.NewConst(inst.Next(), 32))
	b.Branch(tmpTarget)
	return nil
}

func bx(b *il.Builder, inst disasm.Inst) error {
	m, err := reg(inst, 0)
	if err != nil {
		return err
	}
	b.Branch(read(b, inst, m))
	return nil
}

func bkpt(b *il.Builder, inst disasm.Inst) error {
	imm, err := lift.Expect(inst, 0, disasm.OperandImm)
	if err != nil {
		return err
	}
	b.Intrinsic("bkpt", il.NewConst(imm.Imm, 16))
	return nil
}
