package disasm

import (
	"fmt"
	"strings"
)

// Op is an architecture opcode identifier with any condition suffix removed.
// Values are only meaningful within one architecture.
type Op uint16

// CondAL is the "always" condition code shared by A32 and A64.
const CondAL uint8 = 14

// Inst is one decoded instruction with address, size and structured operands.
type Inst struct {
	Addr     uint64
	Raw      uint32
	Size     int
	Op       Op
	Cond     uint8 // CondAL when unconditional
	SetFlags bool  // A32 S forms
	Mnemonic string
	Operands []Operand
	Text     string // full disassembly line
}

// Next returns the address of the following instruction.
func (i Inst) Next() uint64 { return i.Addr + uint64(i.Size) }

// Conditional reports whether the instruction executes under a condition.
func (i Inst) Conditional() bool { return i.Cond != CondAL }

// Operand returns the n-th operand.
func (i Inst) Operand(n int) (Operand, bool) {
	if n < 0 || n >= len(i.Operands) {
		return Operand{}, false
	}
	return i.Operands[n], true
}

// OperandKind classifies an operand.
type OperandKind uint8

const (
	OperandImm OperandKind = iota + 1
	OperandReg
	OperandMem
	OperandModifier
)

func (k OperandKind) String() string {
	switch k {
	case OperandImm:
		return "immediate"
	case OperandReg:
		return "register"
	case OperandMem:
		return "memory"
	case OperandModifier:
		return "modifier"
	}
	return fmt.Sprintf("OperandKind(%d)", int(k))
}

// Reg names an architectural register. Zero marks a hardwired zero register
// (A64 XZR/WZR), which reads as 0 and discards writes.
type Reg struct {
	Name string
	Bits int
	Zero bool
}

func (r Reg) String() string {
	if r.Zero {
		if r.Bits == 32 {
			return "wzr"
		}
		return "xzr"
	}
	return r.Name
}

// ShiftKind enumerates register shifts and extends.
type ShiftKind uint8

const (
	ShiftNone ShiftKind = iota
	ShiftLSL
	ShiftLSR
	ShiftASR
	ShiftROR
	ShiftRRX
	ExtendUXTB
	ExtendUXTH
	ExtendUXTW
	ExtendUXTX
	ExtendSXTB
	ExtendSXTH
	ExtendSXTW
	ExtendSXTX
)

var shiftNames = [...]string{
	ShiftNone:  "",
	ShiftLSL:   "lsl",
	ShiftLSR:   "lsr",
	ShiftASR:   "asr",
	ShiftROR:   "ror",
	ShiftRRX:   "rrx",
	ExtendUXTB: "uxtb",
	ExtendUXTH: "uxth",
	ExtendUXTW: "uxtw",
	ExtendUXTX: "uxtx",
	ExtendSXTB: "sxtb",
	ExtendSXTH: "sxth",
	ExtendSXTW: "sxtw",
	ExtendSXTX: "sxtx",
}

func (k ShiftKind) String() string {
	if int(k) < len(shiftNames) {
		return shiftNames[k]
	}
	return fmt.Sprintf("ShiftKind(%d)", int(k))
}

// ParseShiftKind maps a disassembler shift or extend name to a ShiftKind.
func ParseShiftKind(name string) (ShiftKind, bool) {
	name = strings.ToLower(name)
	for k, n := range shiftNames {
		if n != "" && n == name {
			return ShiftKind(k), true
		}
	}
	return ShiftNone, false
}

// IsExtend reports whether k is an extend rather than a shift.
func (k ShiftKind) IsExtend() bool { return k >= ExtendUXTB }

// Shift is a shift or extend applied to a register operand.
type Shift struct {
	Kind   ShiftKind
	Amount uint8
}

// AddrMode is a memory addressing mode.
type AddrMode uint8

const (
	AddrOffset    AddrMode = iota + 1 // [base, x]
	AddrPreIndex                      // [base, x]! (base updated)
	AddrPostIndex                     // [base], x (base updated)
)

// Mem is a memory reference: Base plus either Offset or a (shifted) Index.
type Mem struct {
	Base     Reg
	Mode     AddrMode
	Offset   int64
	HasIndex bool
	Index    Reg
	Shift    Shift
	Negate   bool // subtract the index instead of adding it
}

// Operand is a single instruction operand.
type Operand struct {
	Kind  OperandKind
	Imm   uint64 // immediate value, or absolute address when Label is set
	Label bool
	Reg   Reg
	Shift Shift // applied to Reg
	Mem   Mem
	Cond  uint8 // condition modifier
	Regs  []Reg // register list modifier
	Text  string
}

// ImmOperand returns an immediate operand.
func ImmOperand(v uint64) Operand {
	return Operand{Kind: OperandImm, Imm: v, Text: fmt.Sprintf("#%#x", v)}
}

// LabelOperand returns an immediate operand holding an absolute address.
func LabelOperand(addr uint64) Operand {
	return Operand{Kind: OperandImm, Imm: addr, Label: true, Text: fmt.Sprintf("%#x", addr)}
}

// RegOperand returns a register operand.
func RegOperand(r Reg) Operand {
	return Operand{Kind: OperandReg, Reg: r, Text: r.String()}
}

// CondOperand returns a condition modifier.
func CondOperand(cond uint8, text string) Operand {
	return Operand{Kind: OperandModifier, Cond: cond, Text: text}
}
