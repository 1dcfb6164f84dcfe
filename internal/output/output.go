// Package output writes lifter reports to files.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"armlift/internal/disasm"
	"armlift/internal/explore"
	"armlift/internal/lift"
)

// InstReport is one lifted instruction.
type InstReport struct {
	Address  uint64     `json:"address"`
	Raw      string     `json:"raw"`
	Text     string     `json:"text"`
	Mnemonic string     `json:"mnemonic"`
	Entry    int        `json:"entry"`
	Blocks   [][]string `json:"blocks"`
	Edges    []string   `json:"edges,omitempty"`
}

// SuccessorReport is one block successor. Address is set for static
// successors, Target for dynamic ones.
type SuccessorReport struct {
	Address *uint64 `json:"address,omitempty"`
	Target  string  `json:"target,omitempty"`
	Mode    string  `json:"mode,omitempty"`
	Guard   string  `json:"guard,omitempty"`
}

// BlockReport is a translated basic block.
type BlockReport struct {
	Start        uint64            `json:"start"`
	Length       uint64            `json:"length"`
	Transfer     string            `json:"transfer"`
	Instructions []InstReport      `json:"instructions"`
	Successors   []SuccessorReport `json:"successors"`
}

// ExitReport is a successor the explorer did not follow.
type ExitReport struct {
	From      uint64          `json:"from"`
	Successor SuccessorReport `json:"successor"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error,omitempty"`
}

// ExploreReport is the result of exploring from an entry point.
type ExploreReport struct {
	Arch      string        `json:"arch"`
	Entry     uint64        `json:"entry"`
	Truncated bool          `json:"truncated,omitempty"`
	Blocks    []BlockReport `json:"blocks"`
	Exits     []ExitReport  `json:"exits,omitempty"`
}

// NewBlockReport flattens a Result into its report form.
func NewBlockReport(res *lift.Result) BlockReport {
	r := BlockReport{
		Start:        res.Start(),
		Length:       res.Length(),
		Transfer:     res.Successors().Kind().String(),
		Instructions: []InstReport{},
		Successors:   []SuccessorReport{},
	}
	for _, e := range res.Entries() {
		ir := InstReport{
			Address:  e.Address,
			Raw:      fmt.Sprintf("%08x", e.Inst.Raw),
			Text:     e.Inst.Text,
			Mnemonic: e.Inst.Mnemonic,
			Entry:    e.Graph.Entry(),
		}
		for _, blk := range e.Graph.Blocks() {
			ops := []string{}
			for _, op := range blk.Operations() {
				ops = append(ops, op.String())
			}
			ir.Blocks = append(ir.Blocks, ops)
		}
		for _, edge := range e.Graph.Edges() {
			ir.Edges = append(ir.Edges, edge.String())
		}
		r.Instructions = append(r.Instructions, ir)
	}
	for _, s := range res.Successors().All() {
		r.Successors = append(r.Successors, newSuccessorReport(s))
	}
	return r
}

func newSuccessorReport(s lift.Successor) SuccessorReport {
	var r SuccessorReport
	if s.Static() {
		addr := s.Address
		r.Address = &addr
	} else {
		r.Target = s.Target.String()
	}
	if s.Mode != lift.ModeSame {
		r.Mode = s.Mode.String()
	}
	if s.Guard != nil {
		r.Guard = s.Guard.String()
	}
	return r
}

// NewExploreReport flattens an explored graph.
func NewExploreReport(arch string, g *explore.Graph) ExploreReport {
	r := ExploreReport{
		Arch:      arch,
		Entry:     g.Entry,
		Truncated: g.Truncated,
		Blocks:    []BlockReport{},
	}
	for _, b := range g.Blocks {
		r.Blocks = append(r.Blocks, NewBlockReport(b.Result))
	}
	for _, x := range g.Exits {
		xr := ExitReport{From: x.From, Successor: newSuccessorReport(x.Succ), Reason: x.Reason}
		if x.Err != nil {
			xr.Error = x.Err.Error()
		}
		r.Exits = append(r.Exits, xr)
	}
	return r
}

// WriteBlocksJSON writes an explore report to blocks.json.
func WriteBlocksJSON(dir string, r ExploreReport) error {
	return writeJSON(filepath.Join(dir, "blocks.json"), r)
}

// WriteDOT writes a DOT graph to <name>.dot.
func WriteDOT(dir, name, dot string) error {
	path := filepath.Join(dir, name+".dot")
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteASM writes a linear listing to asm.txt.
func WriteASM(dir string, insts []disasm.Inst, lookup disasm.SymbolLookup, annotators ...disasm.Annotator) error {
	path := filepath.Join(dir, "asm.txt")
	text := disasm.Format(insts, lookup, annotators...)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// EncodeJSON writes v to w as indented JSON.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if err := EncodeJSON(f, v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
