package a32

import (
	"golang.org/x/arch/arm/armasm"

	"armlift/internal/arch/nzcv"
	"armlift/internal/disasm"
	"armlift/internal/il"
	"armlift/internal/lift"
)

// pcWriters are the opcodes whose first operand is a destination register.
var pcWriters = map[armasm.Op]bool{
	armasm.ADD: true, armasm.ADC: true, armasm.SUB: true, armasm.RSB: true,
	armasm.AND: true, armasm.ORR: true, armasm.EOR: true, armasm.BIC: true,
	armasm.MOV: true, armasm.MVN: true, armasm.LSL: true, armasm.LSR: true,
	armasm.ASR: true, armasm.ROR: true, armasm.RRX: true, armasm.LDR: true,
}

// Resolve reports the block successors of inst. B ends the block with a
// static target; BX, BXJ and every write to pc end it with a dynamic target
// whose bit 0 selects the instruction set. BL and BLX are calls and do not
// end the block. A condition other than AL pairs the target with the
// fallthrough.
func Resolve(inst disasm.Inst) (lift.Successors, error) {
	var taken lift.Successor
	switch o := armasm.Op(inst.Op); {
	case o == armasm.B:
		target, err := label(inst)
		if err != nil {
			return lift.Successors{}, err
		}
		taken = lift.Successor{Address: target}

	case o == armasm.BX, o == armasm.BXJ:
		m, err := reg(inst, 0)
		if err != nil {
			return lift.Successors{}, err
		}
		b := il.NewBuilder()
		target := read(b, inst, m)
		if err := b.Err(); err != nil {
			return lift.Successors{}, err
		}
		taken = lift.Successor{Target: target, Mode: lift.ModeInterwork}

	case o == armasm.POP && popsPC(inst), pcWriters[o] && writesPC(inst):
		taken = lift.Successor{Target: PC, Mode: lift.ModeInterwork}

	default:
		return lift.Successors{}, nil
	}

	if !inst.Conditional() {
		return lift.Jump(taken), nil
	}
	b := il.NewBuilder()
	cond := nzcv.Cond(b, inst.Cond)
	if err := b.Err(); err != nil {
		return lift.Successors{}, err
	}
	return lift.Branch(cond, taken, inst.Next())
}

func writesPC(inst disasm.Inst) bool {
	d, ok := inst.Operand(0)
	return ok && d.Kind == disasm.OperandReg && isPC(d.Reg)
}

func popsPC(inst disasm.Inst) bool {
	l, ok := inst.Operand(0)
	if !ok {
		return false
	}
	for _, r := range l.Regs {
		if isPC(r) {
			return true
		}
	}
	return false
}
