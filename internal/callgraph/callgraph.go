// Package callgraph converts explored blocks into lattice graphs: a
// per-entry control-flow graph and a call graph.
package callgraph

import (
	"github.com/zboralski/lattice"

	"armlift/internal/explore"
)

// BuildCallGraph constructs a lattice.Graph with the explored region as one
// node and an edge to every static callee. Indirect calls are skipped.
func BuildCallGraph(name string, g *explore.Graph) *lattice.Graph {
	cg := &lattice.Graph{Nodes: []string{name}}
	for _, b := range g.Blocks {
		for _, e := range CallEdges(b.Result) {
			if e.Indirect() {
				continue
			}
			callee := e.Callee()
			cg.Nodes = append(cg.Nodes, callee)
			cg.Edges = append(cg.Edges, lattice.Edge{Caller: name, Callee: callee})
		}
	}
	cg.Dedup()
	return cg
}
