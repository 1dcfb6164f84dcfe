package lift

import (
	"errors"
	"fmt"

	"armlift/internal/disasm"
)

// Sentinels for errors.Is classification.
var (
	ErrDecode       = errors.New("decode failed")
	ErrUnsupported  = errors.New("unsupported instruction")
	ErrOperandShape = errors.New("operand shape mismatch")
	ErrSemantics    = errors.New("semantics failed")
)

// DecodeError reports malformed bytes at Addr.
type DecodeError struct {
	Addr uint64
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at 0x%x: %v", e.Addr, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnsupportedError reports an opcode with no semantics in the library.
type UnsupportedError struct {
	Mnemonic string
	Addr     uint64
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unhandled instruction %s at 0x%x", e.Mnemonic, e.Addr)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// OperandError reports an operand of the wrong kind, or a missing operand,
// where semantics or control-transfer resolution required a specific one.
type OperandError struct {
	Mnemonic string
	Addr     uint64
	Index    int
	Want     disasm.OperandKind
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%s at 0x%x: operand %d: want %s", e.Mnemonic, e.Addr, e.Index, e.Want)
}

func (e *OperandError) Is(target error) bool { return target == ErrOperandShape }

// SemanticsError wraps a failure inside a semantics function.
type SemanticsError struct {
	Mnemonic string
	Addr     uint64
	Err      error
}

func (e *SemanticsError) Error() string {
	return fmt.Sprintf("%s at 0x%x: %v", e.Mnemonic, e.Addr, e.Err)
}

func (e *SemanticsError) Unwrap() error        { return e.Err }
func (e *SemanticsError) Is(target error) bool { return target == ErrSemantics }

// Expect returns operand n of inst if it has one of the given kinds, or an
// *OperandError naming the first wanted kind.
func Expect(inst disasm.Inst, n int, kinds ...disasm.OperandKind) (disasm.Operand, error) {
	op, ok := inst.Operand(n)
	if ok {
		for _, k := range kinds {
			if op.Kind == k {
				return op, nil
			}
		}
	}
	want := disasm.OperandKind(0)
	if len(kinds) > 0 {
		want = kinds[0]
	}
	return disasm.Operand{}, &OperandError{Mnemonic: inst.Mnemonic, Addr: inst.Addr, Index: n, Want: want}
}
