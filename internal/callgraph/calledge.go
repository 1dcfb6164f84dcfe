package callgraph

import (
	"fmt"

	"armlift/internal/il"
	"armlift/internal/lift"
)

// CallEdge is a call site found in a lifted block: an instruction whose
// graph branches but which did not end the block.
type CallEdge struct {
	FromPC   uint64 `json:"from_pc"`
	Mnemonic string `json:"mnemonic"`
	TargetPC uint64 `json:"target_pc,omitempty"` // static target, 0 for indirect calls
	Target   string `json:"target,omitempty"`    // dynamic target expression
}

// Indirect reports whether the callee is computed at run time.
func (e CallEdge) Indirect() bool { return e.Target != "" }

// Callee names the call target: sub_<addr> for static calls, the target
// expression otherwise.
func (e CallEdge) Callee() string {
	if e.Indirect() {
		return e.Target
	}
	return fmt.Sprintf("sub_%x", e.TargetPC)
}

// CallEdges extracts the call sites of res in address order.
func CallEdges(res *lift.Result) []CallEdge {
	entries := res.Entries()
	var edges []CallEdge
	for i, e := range entries {
		if i == len(entries)-1 && res.Successors().Kind() != lift.TransferFallthrough {
			break // the terminator
		}
		target, ok := branchTarget(e.Graph)
		if !ok {
			continue
		}
		edge := CallEdge{FromPC: e.Address, Mnemonic: e.Inst.Mnemonic}
		if c, ok := target.(il.Const); ok {
			// bit 0 of a static target marks an instruction-set switch
			edge.TargetPC = c.Value &^ 1
		} else {
			edge.Target = target.String()
		}
		edges = append(edges, edge)
	}
	return edges
}

// branchTarget returns the target of the first branch operation in g. A
// target that is a scalar assigned earlier in the graph is replaced by the
// assigned expression.
func branchTarget(g *il.Graph) (il.Expr, bool) {
	defs := map[string]il.Expr{}
	for _, blk := range g.Blocks() {
		for _, op := range blk.Operations() {
			switch o := op.(type) {
			case il.Assign:
				defs[o.Dst.Name] = o.Src
			case il.Load:
				delete(defs, o.Dst.Name)
			case il.Branch:
				if s, ok := o.Target.(il.Scalar); ok {
					if def, ok := defs[s.Name]; ok {
						return def, true
					}
				}
				return o.Target, true
			}
		}
	}
	return nil, false
}
