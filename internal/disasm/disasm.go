// Package disasm defines the decoded-instruction model shared by the ARM
// decoders and the linear listing used by the CLI.
package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decoder decodes the instruction at data[0:], located at addr.
//
// It returns io.EOF when data holds no further instruction (empty, or fewer
// bytes than the fixed instruction width). Any other error means the bytes
// are malformed.
type Decoder interface {
	Decode(data []byte, addr uint64) (Inst, error)
}

// InstWidth is the fixed instruction width of A32 and A64.
const InstWidth = 4

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Annotator returns a comment for an instruction, or "".
type Annotator func(inst Inst) string

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint64 // VA of the first byte in Data
	MaxSteps int    // maximum instructions to decode; 0 = 10M
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes a byte region linearly. Undecodable words become
// .word entries and decoding continues after them.
func Disassemble(data []byte, dec Decoder, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	n := len(data) / InstWidth
	if n > maxSteps {
		n = maxSteps
	}

	result := make([]Inst, 0, n)
	off := 0
	for len(result) < maxSteps {
		addr := opts.BaseAddr + uint64(off)
		inst, err := dec.Decode(data[off:], addr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if off+InstWidth > len(data) {
				break
			}
			raw := binary.LittleEndian.Uint32(data[off:])
			inst = Inst{
				Addr:     addr,
				Raw:      raw,
				Size:     InstWidth,
				Cond:     CondAL,
				Mnemonic: ".word",
				Text:     fmt.Sprintf(".word 0x%08x", raw),
			}
		}
		result = append(result, inst)
		off += inst.Size
	}
	return result
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <hex bytes>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		fmt.Fprintf(&b, "%02x %02x %02x %02x  ",
			byte(inst.Raw), byte(inst.Raw>>8), byte(inst.Raw>>16), byte(inst.Raw>>24))
		b.WriteString(inst.Text)
		commented := false
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
				commented = true
			}
		}
		if !commented {
			for _, ann := range annotators {
				if s := ann(inst); s != "" {
					fmt.Fprintf(&b, "  ; %s", s)
					break
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// TargetAnnotator names the first label operand of an instruction when lookup
// knows it, e.g. "-> main" for a BL.
func TargetAnnotator(lookup SymbolLookup) Annotator {
	return func(inst Inst) string {
		if lookup == nil {
			return ""
		}
		for _, op := range inst.Operands {
			if op.Kind != OperandImm || !op.Label {
				continue
			}
			if name, ok := lookup(op.Imm); ok {
				return "-> " + name
			}
			return ""
		}
		return ""
	}
}

// PlaceholderLookup returns a SymbolLookup over a fixed address → name map.
func PlaceholderLookup(entryPoints map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		if name, ok := entryPoints[addr]; ok {
			return name, true
		}
		return "", false
	}
}
