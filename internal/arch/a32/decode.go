// Package a32 lifts ARM (A32) code: a decoder adapter over armasm, opcode
// semantics with conditional execution, and control-transfer resolution
// including interworking branches.
package a32

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/arch/arm/armasm"

	"armlift/internal/disasm"
)

// armasm.Decode records coverage in a package-level slice.
var decodeMu sync.Mutex

// pcOffset is how far ahead of the instruction a read of PC observes.
const pcOffset = 8

// Decoder adapts armasm (ARM state) to disasm.Decoder.
type Decoder struct{}

// Decode decodes one 4-byte instruction at data[0:].
func (Decoder) Decode(data []byte, addr uint64) (disasm.Inst, error) {
	if len(data) < disasm.InstWidth {
		return disasm.Inst{}, io.EOF
	}
	raw := binary.LittleEndian.Uint32(data)
	decodeMu.Lock()
	inst, err := armasm.Decode(data[:disasm.InstWidth], armasm.ModeARM)
	decodeMu.Unlock()
	if err != nil {
		return disasm.Inst{}, fmt.Errorf("a32: 0x%08x: %w", raw, err)
	}
	base, cond, setFlags := splitOp(inst.Op)
	text := armasm.GNUSyntax(inst)
	mnemonic := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		mnemonic = text[:i]
	}
	ops := make([]disasm.Operand, 0, len(inst.Args))
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		ops = append(ops, convertArg(a, addr))
	}
	return disasm.Inst{
		Addr:     addr,
		Raw:      raw,
		Size:     inst.Len,
		Op:       disasm.Op(base),
		Cond:     cond,
		SetFlags: setFlags,
		Mnemonic: mnemonic,
		Operands: ops,
		Text:     text,
	}, nil
}

// splitOp strips the condition and S bit from an armasm opcode. Opcodes come
// in aligned blocks of 16, one per condition, with the AL form at offset 14;
// flag-setting forms are the block after the plain one.
func splitOp(op armasm.Op) (base armasm.Op, cond uint8, setFlags bool) {
	cond = uint8(op & 15)
	if cond > disasm.CondAL {
		cond = disasm.CondAL
	}
	base = op&^15 | 14
	if strings.HasSuffix(base.String(), ".S") {
		setFlags = true
		base -= 16
	}
	return base, cond, setFlags
}

func convertArg(a armasm.Arg, addr uint64) disasm.Operand {
	switch a := a.(type) {
	case armasm.Reg:
		return disasm.RegOperand(convertReg(a))
	case armasm.RegShift:
		op := disasm.RegOperand(convertReg(a.Reg))
		op.Shift = convertShift(a.Shift, a.Count)
		op.Text = strings.ToLower(a.String())
		return op
	case armasm.Imm:
		return disasm.ImmOperand(uint64(a))
	case armasm.ImmAlt:
		return disasm.ImmOperand(uint64(a.Imm()))
	case armasm.PCRel:
		return disasm.LabelOperand(uint64(uint32(int64(addr) + pcOffset + int64(a))))
	case armasm.Mem:
		return convertMem(a)
	case armasm.RegList:
		var regs []disasm.Reg
		for i := 0; i < 16; i++ {
			if a&(1<<uint(i)) != 0 {
				regs = append(regs, convertReg(armasm.Reg(i)))
			}
		}
		return disasm.Operand{Kind: disasm.OperandModifier, Regs: regs, Text: strings.ToLower(a.String())}
	}
	return disasm.Operand{Kind: disasm.OperandModifier, Text: strings.ToLower(a.String())}
}

func convertReg(r armasm.Reg) disasm.Reg {
	switch {
	case r == armasm.SP:
		return disasm.Reg{Name: "sp", Bits: 32}
	case r == armasm.LR:
		return disasm.Reg{Name: "lr", Bits: 32}
	case r == armasm.PC:
		return disasm.Reg{Name: "pc", Bits: 32}
	case armasm.R0 <= r && r <= armasm.R12:
		return disasm.Reg{Name: fmt.Sprintf("r%d", int(r-armasm.R0)), Bits: 32}
	case armasm.D0 <= r && r <= armasm.D31:
		return disasm.Reg{Name: strings.ToLower(r.String()), Bits: 64}
	}
	return disasm.Reg{Name: strings.ToLower(r.String()), Bits: 32}
}

func convertShift(s armasm.Shift, count uint8) disasm.Shift {
	var kind disasm.ShiftKind
	switch s {
	case armasm.ShiftLeft:
		if count == 0 {
			return disasm.Shift{}
		}
		kind = disasm.ShiftLSL
	case armasm.ShiftRight:
		kind = disasm.ShiftLSR
	case armasm.ShiftRightSigned:
		kind = disasm.ShiftASR
	case armasm.RotateRight:
		kind = disasm.ShiftROR
	case armasm.RotateRightExt:
		kind = disasm.ShiftRRX
	}
	return disasm.Shift{Kind: kind, Amount: count}
}

func convertMem(m armasm.Mem) disasm.Operand {
	text := strings.ToLower(m.String())
	var mode disasm.AddrMode
	switch m.Mode {
	case armasm.AddrOffset:
		mode = disasm.AddrOffset
	case armasm.AddrPreIndex:
		mode = disasm.AddrPreIndex
	case armasm.AddrPostIndex:
		mode = disasm.AddrPostIndex
	default:
		// LDM/STM base forms
		return disasm.Operand{Kind: disasm.OperandModifier, Text: text}
	}
	mem := disasm.Mem{Base: convertReg(m.Base), Mode: mode}
	if m.Sign != 0 {
		mem.HasIndex = true
		mem.Index = convertReg(m.Index)
		mem.Shift = convertShift(m.Shift, m.Count)
		mem.Negate = m.Sign < 0
	} else {
		mem.Offset = int64(m.Offset)
	}
	return disasm.Operand{Kind: disasm.OperandMem, Mem: mem, Text: text}
}
