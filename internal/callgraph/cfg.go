package callgraph

import (
	"github.com/zboralski/lattice"

	"armlift/internal/explore"
	"armlift/internal/lift"
)

// BuildCFG wraps BuildFuncCFG in a single-function lattice.CFGGraph.
func BuildCFG(name string, g *explore.Graph) *lattice.CFGGraph {
	return &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{BuildFuncCFG(name, g)}}
}

// BuildFuncCFG maps explored blocks to a lattice.FuncCFG. Block IDs follow
// address order; Start and End index the concatenated instruction stream.
// Conditional successors are labelled "T" (taken) and "F" (fallthrough). A
// block with no successor inside the graph is terminal.
func BuildFuncCFG(name string, g *explore.Graph) *lattice.FuncCFG {
	ids := make(map[uint64]int, len(g.Blocks))
	for i, b := range g.Blocks {
		ids[b.Start] = i
	}

	f := &lattice.FuncCFG{Name: name}
	idx := 0
	for i, b := range g.Blocks {
		n := len(b.Result.Entries())
		lb := &lattice.BasicBlock{ID: i, Start: idx, End: idx + n}

		succs := b.Result.Successors()
		for j, s := range succs.All() {
			if !s.Static() {
				continue
			}
			id, ok := ids[s.Address]
			if !ok {
				continue
			}
			cond := ""
			if succs.Kind() == lift.TransferConditional {
				cond = "T"
				if j == 1 {
					cond = "F"
				}
			}
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: id, Cond: cond})
		}
		lb.Term = len(lb.Succs) == 0

		offsets := make(map[uint64]int, n)
		for k, e := range b.Result.Entries() {
			offsets[e.Address] = idx + k
		}
		for _, e := range CallEdges(b.Result) {
			lb.Calls = append(lb.Calls, lattice.CallSite{Offset: offsets[e.FromPC], Callee: e.Callee()})
		}

		f.Blocks = append(f.Blocks, lb)
		idx += n
	}
	return f
}
