package render

import (
	"fmt"

	"github.com/xlab/treeprint"

	"armlift/internal/lift"
)

// Tree renders a translated block as an indented text tree: one branch per
// instruction holding its IL blocks and operations, then the successors.
func Tree(res *lift.Result) string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("block 0x%x +%d", res.Start(), res.Length()))

	for _, e := range res.Entries() {
		inst := tree.AddMetaBranch(fmt.Sprintf("0x%x", e.Address), e.Inst.Text)
		blocks := e.Graph.Blocks()
		for _, blk := range blocks {
			parent := inst
			if len(blocks) > 1 {
				parent = inst.AddBranch(fmt.Sprintf("[%d]", blk.Index()))
			}
			for _, op := range blk.Operations() {
				parent.AddNode(op.String())
			}
		}
		for _, edge := range e.Graph.Edges() {
			inst.AddMetaNode("edge", edge.String())
		}
	}

	succs := res.Successors()
	sb := tree.AddMetaBranch(succs.Kind().String(), "successors")
	for _, s := range succs.All() {
		sb.AddNode(s.String())
	}
	return tree.String()
}
