// Package a64 lifts AArch64 code: a decoder adapter over arm64asm, opcode
// semantics, and control-transfer resolution.
package a64

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"armlift/internal/disasm"
)

// Decoder adapts arm64asm to disasm.Decoder.
type Decoder struct{}

// Decode decodes one 4-byte instruction at data[0:].
func (Decoder) Decode(data []byte, addr uint64) (disasm.Inst, error) {
	if len(data) < disasm.InstWidth {
		return disasm.Inst{}, io.EOF
	}
	raw := binary.LittleEndian.Uint32(data)
	inst, err := arm64asm.Decode(data[:disasm.InstWidth])
	if err != nil {
		return disasm.Inst{}, fmt.Errorf("a64: 0x%08x: %w", raw, err)
	}
	text := arm64asm.GNUSyntax(inst)
	mnemonic := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		mnemonic = text[:i]
	}
	ops := make([]disasm.Operand, 0, len(inst.Args))
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		ops = append(ops, convertArg(inst, a, addr))
	}
	return disasm.Inst{
		Addr:     addr,
		Raw:      raw,
		Size:     disasm.InstWidth,
		Op:       disasm.Op(inst.Op),
		Cond:     disasm.CondAL,
		Mnemonic: mnemonic,
		Operands: ops,
		Text:     text,
	}, nil
}

func convertArg(inst arm64asm.Inst, a arm64asm.Arg, addr uint64) disasm.Operand {
	switch a := a.(type) {
	case arm64asm.Reg:
		return disasm.RegOperand(convertReg(a))
	case arm64asm.RegSP:
		return disasm.RegOperand(convertRegSP(a))
	case arm64asm.ImmShift:
		imm, shift := immShift(inst.Enc, a)
		op := disasm.ImmOperand(imm)
		if shift != 0 {
			op.Shift = disasm.Shift{Kind: disasm.ShiftLSL, Amount: shift}
		}
		op.Text = strings.ToLower(a.String())
		return op
	case arm64asm.RegExtshiftAmount:
		return regShift(a)
	case arm64asm.PCRel:
		if inst.Op == arm64asm.ADRP {
			return disasm.LabelOperand(addr&^0xfff + uint64(int64(a)))
		}
		return disasm.LabelOperand(addr + uint64(int64(a)))
	case arm64asm.MemImmediate:
		return memImmediate(a)
	case arm64asm.MemExtend:
		return memExtend(a)
	case arm64asm.Imm:
		return disasm.ImmOperand(uint64(a.Imm))
	case arm64asm.Imm64:
		return disasm.ImmOperand(a.Imm)
	case arm64asm.Imm_hint:
		return disasm.ImmOperand(uint64(a))
	case arm64asm.Cond:
		cond := a.Value
		if a.Invert && cond>>1 != 7 {
			cond ^= 1
		}
		return disasm.CondOperand(cond, strings.ToLower(a.String()))
	}
	return disasm.Operand{Kind: disasm.OperandModifier, Text: strings.ToLower(a.String())}
}

// immShift reads the unexported immediate and shift of an ImmShift from the
// raw encoding.
func immShift(enc uint32, a arm64asm.ImmShift) (uint64, uint8) {
	switch {
	case disasm.Field(enc, 24, 5) == 0b10001: // add/sub (immediate)
		return uint64(disasm.Field(enc, 10, 12)), uint8(disasm.Field(enc, 22, 2) * 12)
	case disasm.Field(enc, 23, 6) == 0b100101: // move wide
		return uint64(disasm.Field(enc, 5, 16)), uint8(disasm.Field(enc, 21, 2) * 16)
	}
	// "#0x10" or "#0x10, LSL #12"
	s := a.String()
	var shift uint64
	if i := strings.Index(s, ", LSL #"); i >= 0 {
		shift, _ = strconv.ParseUint(s[i+len(", LSL #"):], 10, 8)
		s = s[:i]
	}
	imm, _ := strconv.ParseUint(strings.TrimPrefix(s, "#"), 0, 64)
	return imm, uint8(shift)
}

var regByName = func() map[string]arm64asm.Reg {
	m := make(map[string]arm64asm.Reg)
	for r := arm64asm.W0; r <= arm64asm.XZR; r++ {
		m[r.String()] = r
	}
	return m
}()

func convertReg(r arm64asm.Reg) disasm.Reg {
	switch {
	case r == arm64asm.WZR:
		return disasm.Reg{Name: "xzr", Bits: 32, Zero: true}
	case r == arm64asm.XZR:
		return disasm.Reg{Name: "xzr", Bits: 64, Zero: true}
	case arm64asm.W0 <= r && r <= arm64asm.W30:
		return disasm.Reg{Name: fmt.Sprintf("x%d", int(r-arm64asm.W0)), Bits: 32}
	case arm64asm.X0 <= r && r <= arm64asm.X30:
		return disasm.Reg{Name: fmt.Sprintf("x%d", int(r-arm64asm.X0)), Bits: 64}
	}
	// SIMD and FP registers are carried by name only.
	name := strings.ToLower(r.String())
	bits := 128
	switch name[0] {
	case 'b':
		bits = 8
	case 'h':
		bits = 16
	case 's':
		bits = 32
	case 'd':
		bits = 64
	}
	return disasm.Reg{Name: name, Bits: bits}
}

func convertRegSP(r arm64asm.RegSP) disasm.Reg {
	switch arm64asm.Reg(r) {
	case arm64asm.SP:
		return disasm.Reg{Name: "sp", Bits: 64}
	case arm64asm.WSP:
		return disasm.Reg{Name: "sp", Bits: 32}
	}
	return convertReg(arm64asm.Reg(r))
}

func parseRegSP(name string) (disasm.Reg, bool) {
	switch name {
	case "SP":
		return disasm.Reg{Name: "sp", Bits: 64}, true
	case "WSP":
		return disasm.Reg{Name: "sp", Bits: 32}, true
	}
	r, ok := regByName[name]
	if !ok {
		return disasm.Reg{}, false
	}
	return convertReg(r), true
}

// regShift parses "X2", "X2, LSL #3" or "W2, SXTW #2".
func regShift(a arm64asm.RegExtshiftAmount) disasm.Operand {
	text := a.String()
	parts := strings.SplitN(text, ", ", 2)
	reg, ok := parseRegSP(parts[0])
	if !ok {
		return disasm.Operand{Kind: disasm.OperandModifier, Text: strings.ToLower(text)}
	}
	op := disasm.RegOperand(reg)
	op.Text = strings.ToLower(text)
	if len(parts) == 2 {
		op.Shift = parseShift(parts[1])
	}
	return op
}

// parseShift parses "LSL #3", "UXTW" or "SXTX #0".
func parseShift(s string) disasm.Shift {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return disasm.Shift{}
	}
	kind, ok := disasm.ParseShiftKind(fields[0])
	if !ok {
		return disasm.Shift{}
	}
	var amount uint64
	if len(fields) > 1 {
		amount, _ = strconv.ParseUint(strings.TrimPrefix(fields[1], "#"), 10, 8)
	}
	return disasm.Shift{Kind: kind, Amount: uint8(amount)}
}

// memImmediate parses "[X1]", "[X1,#16]", "[X1,#-8]!" or "[X1],#8".
func memImmediate(a arm64asm.MemImmediate) disasm.Operand {
	text := a.String()
	bad := disasm.Operand{Kind: disasm.OperandModifier, Text: strings.ToLower(text)}
	base := convertRegSP(a.Base)
	var mode disasm.AddrMode
	switch a.Mode {
	case arm64asm.AddrOffset:
		mode = disasm.AddrOffset
	case arm64asm.AddrPreIndex:
		mode = disasm.AddrPreIndex
	case arm64asm.AddrPostIndex:
		mode = disasm.AddrPostIndex
	default:
		return bad
	}
	var offset int64
	if i := strings.LastIndex(text, "#"); i >= 0 {
		num := strings.TrimRight(text[i+1:], "]!")
		v, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return bad
		}
		offset = v
	}
	return disasm.Operand{
		Kind: disasm.OperandMem,
		Mem:  disasm.Mem{Base: base, Mode: mode, Offset: offset},
		Text: strings.ToLower(text),
	}
}

func memExtend(a arm64asm.MemExtend) disasm.Operand {
	shift := disasm.Shift{}
	if kind, ok := disasm.ParseShiftKind(a.Extend.String()); ok {
		shift.Kind = kind
	}
	if !a.ShiftMustBeZero {
		shift.Amount = a.Amount
	}
	return disasm.Operand{
		Kind: disasm.OperandMem,
		Mem: disasm.Mem{
			Base:     convertRegSP(a.Base),
			Mode:     disasm.AddrOffset,
			HasIndex: true,
			Index:    convertReg(a.Index),
			Shift:    shift,
		},
		Text: strings.ToLower(a.String()),
	}
}
