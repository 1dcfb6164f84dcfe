package lift

import (
	"armlift/internal/disasm"
	"armlift/internal/il"
)

// Entry is one lifted instruction of a block.
type Entry struct {
	Address uint64
	Inst    disasm.Inst
	Graph   *il.Graph
}

// Result is a translated basic block. Entries are in strictly increasing
// address order; the first starts at Start; Length covers exactly the bytes
// of the lifted instructions.
type Result struct {
	entries []Entry
	start   uint64
	length  uint64
	succs   Successors
}

// Entries returns the lifted instructions in order.
func (r *Result) Entries() []Entry { return r.entries }

// Start returns the block's start address.
func (r *Result) Start() uint64 { return r.start }

// Length returns the number of bytes consumed.
func (r *Result) Length() uint64 { return r.length }

// End returns the address following the last lifted instruction.
func (r *Result) End() uint64 { return r.start + r.length }

// Successors returns how control leaves the block.
func (r *Result) Successors() Successors { return r.succs }

// Empty reports whether no instruction was lifted.
func (r *Result) Empty() bool { return len(r.entries) == 0 }
