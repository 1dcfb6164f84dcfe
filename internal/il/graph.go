package il

import (
	"fmt"
	"strings"
)

// Operation is a single IL statement.
type Operation interface {
	String() string
	isOperation()
}

// Assign writes Src to Dst. Widths must match.
type Assign struct {
	Dst Scalar
	Src Expr
}

func (a Assign) String() string { return fmt.Sprintf("%s = %s", a.Dst, a.Src) }
func (Assign) isOperation()      {}

// Store writes Src to memory at Addr. The access width is Src.Bits().
type Store struct {
	Addr Expr
	Src  Expr
}

func (s Store) String() string { return fmt.Sprintf("[%s] = %s", s.Addr, s.Src) }
func (Store) isOperation()      {}

// Load reads Dst.Width bits from memory at Addr into Dst.
type Load struct {
	Dst  Scalar
	Addr Expr
}

func (l Load) String() string { return fmt.Sprintf("%s = [%s]", l.Dst, l.Addr) }
func (Load) isOperation()      {}

// Branch transfers control to Target. Successor edges of the enclosing basic
// block are described outside the instruction graph.
type Branch struct {
	Target Expr
}

func (b Branch) String() string { return fmt.Sprintf("branch %s", b.Target) }
func (Branch) isOperation()      {}

// Intrinsic records an effect the IL does not model, such as a breakpoint.
type Intrinsic struct {
	Mnemonic string
	Args     []Expr
}

func (in Intrinsic) String() string {
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("intrinsic %s(%s)", in.Mnemonic, strings.Join(args, ", "))
}
func (Intrinsic) isOperation() {}

// Block is a straight-line sequence of operations inside a Graph.
type Block struct {
	index int
	ops   []Operation
}

// Index returns the block's position in its graph.
func (b *Block) Index() int { return b.index }

// Operations returns the block's operations in order.
func (b *Block) Operations() []Operation { return b.ops }

// Assign appends dst = src.
func (b *Block) Assign(dst Scalar, src Expr) error {
	if src == nil || dst.Width != src.Bits() {
		return fmt.Errorf("%w: %s = %v", ErrWidth, dst, src)
	}
	b.ops = append(b.ops, Assign{Dst: dst, Src: src})
	return nil
}

// Store appends [addr] = src.
func (b *Block) Store(addr, src Expr) error {
	if addr == nil || src == nil {
		return fmt.Errorf("il: store with nil operand")
	}
	b.ops = append(b.ops, Store{Addr: addr, Src: src})
	return nil
}

// Load appends dst = [addr].
func (b *Block) Load(dst Scalar, addr Expr) error {
	if addr == nil {
		return fmt.Errorf("il: load with nil address")
	}
	b.ops = append(b.ops, Load{Dst: dst, Addr: addr})
	return nil
}

// Branch appends a control transfer to target.
func (b *Block) Branch(target Expr) error {
	if target == nil {
		return fmt.Errorf("il: branch with nil target")
	}
	b.ops = append(b.ops, Branch{Target: target})
	return nil
}

// Intrinsic appends an unmodelled effect.
func (b *Block) Intrinsic(mnemonic string, args ...Expr) {
	b.ops = append(b.ops, Intrinsic{Mnemonic: mnemonic, Args: args})
}

// Edge connects two blocks of a Graph. A nil Cond is unconditional.
type Edge struct {
	Head int
	Tail int
	Cond Expr
}

func (e Edge) String() string {
	if e.Cond == nil {
		return fmt.Sprintf("%d -> %d", e.Head, e.Tail)
	}
	return fmt.Sprintf("%d -> %d ? %s", e.Head, e.Tail, e.Cond)
}

// Graph is the IL of one instruction: blocks joined by optionally guarded
// edges, with a single entry and one or more exits.
type Graph struct {
	blocks  []*Block
	edges   []Edge
	entry   int
	addr    uint64
	hasAddr bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewBlock appends a block. The first block created is the entry.
func (g *Graph) NewBlock() *Block {
	b := &Block{index: len(g.blocks)}
	g.blocks = append(g.blocks, b)
	return b
}

// AddEdge connects head to tail. cond may be nil; otherwise it must be 1 bit.
func (g *Graph) AddEdge(head, tail int, cond Expr) error {
	if head < 0 || head >= len(g.blocks) || tail < 0 || tail >= len(g.blocks) {
		return fmt.Errorf("il: edge %d -> %d out of range (%d blocks)", head, tail, len(g.blocks))
	}
	if cond != nil && cond.Bits() != 1 {
		return fmt.Errorf("%w: edge condition %s", ErrWidth, cond)
	}
	g.edges = append(g.edges, Edge{Head: head, Tail: tail, Cond: cond})
	return nil
}

// SetEntry sets the entry block.
func (g *Graph) SetEntry(i int) error {
	if i < 0 || i >= len(g.blocks) {
		return fmt.Errorf("il: entry %d out of range", i)
	}
	g.entry = i
	return nil
}

// Entry returns the entry block index.
func (g *Graph) Entry() int { return g.entry }

// Blocks returns all blocks.
func (g *Graph) Blocks() []*Block { return g.blocks }

// Block returns block i.
func (g *Graph) Block(i int) *Block { return g.blocks[i] }

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

// Successors returns the edges leaving block i.
func (g *Graph) Successors(i int) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Head == i {
			out = append(out, e)
		}
	}
	return out
}

// Exits returns the indices of blocks with no outgoing edge.
func (g *Graph) Exits() []int {
	hasOut := make([]bool, len(g.blocks))
	for _, e := range g.edges {
		hasOut[e.Head] = true
	}
	var exits []int
	for i, out := range hasOut {
		if !out {
			exits = append(exits, i)
		}
	}
	return exits
}

// SetAddress tags the graph with the address of the instruction it lifts.
func (g *Graph) SetAddress(addr uint64) {
	g.addr = addr
	g.hasAddr = true
}

// Address returns the originating instruction address, if set.
func (g *Graph) Address() (uint64, bool) { return g.addr, g.hasAddr }

// Operations returns the number of operations across all blocks.
func (g *Graph) Operations() int {
	n := 0
	for _, b := range g.blocks {
		n += len(b.ops)
	}
	return n
}

// Validate checks structural invariants: at least one block, every block
// reachable from the entry, and 1-bit edge conditions.
func (g *Graph) Validate() error {
	if len(g.blocks) == 0 {
		return fmt.Errorf("il: graph has no blocks")
	}
	seen := make([]bool, len(g.blocks))
	stack := []int{g.entry}
	seen[g.entry] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.Successors(n) {
			if e.Cond != nil && e.Cond.Bits() != 1 {
				return fmt.Errorf("%w: edge condition %s", ErrWidth, e.Cond)
			}
			if !seen[e.Tail] {
				seen[e.Tail] = true
				stack = append(stack, e.Tail)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("il: block %d unreachable from entry %d", i, g.entry)
		}
	}
	return nil
}

func (g *Graph) String() string {
	var b strings.Builder
	if addr, ok := g.Address(); ok {
		fmt.Fprintf(&b, "graph @ 0x%x\n", addr)
	}
	for _, blk := range g.blocks {
		fmt.Fprintf(&b, "  [%d]\n", blk.index)
		for _, op := range blk.ops {
			fmt.Fprintf(&b, "    %s\n", op)
		}
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	return b.String()
}
