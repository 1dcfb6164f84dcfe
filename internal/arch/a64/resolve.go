package a64

import (
	"golang.org/x/arch/arm64/arm64asm"

	"armlift/internal/disasm"
	"armlift/internal/il"
	"armlift/internal/lift"
)

// Resolve reports the block successors of inst. BL and BLR are calls and do
// not end the block. SVC and BRK are not transfers either.
func Resolve(inst disasm.Inst) (lift.Successors, error) {
	switch arm64asm.Op(inst.Op) {
	case arm64asm.B, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		b := il.NewBuilder()
		cond, target, err := condBranch(b, inst)
		if err != nil {
			return lift.Successors{}, err
		}
		if err := b.Err(); err != nil {
			return lift.Successors{}, err
		}
		taken := lift.Successor{Address: target}
		if cond == nil {
			return lift.Jump(taken), nil
		}
		return lift.Branch(cond, taken, inst.Next())

	case arm64asm.BR, arm64asm.RET:
		n, err := reg(inst, 0)
		if err != nil {
			return lift.Successors{}, err
		}
		b := il.NewBuilder()
		target := read(b, n)
		if err := b.Err(); err != nil {
			return lift.Successors{}, err
		}
		return lift.Jump(lift.Successor{Target: target}), nil
	}
	return lift.Successors{}, nil
}
