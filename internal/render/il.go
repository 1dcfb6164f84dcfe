package render

import (
	"fmt"
	"strings"

	"armlift/internal/lift"
)

// ILDOT renders the instruction subgraphs of a block as DOT. Each
// instruction is a cluster of IL blocks; guarded edges carry their condition.
// Dashed edges link every exit of one instruction to the entry of the next.
func ILDOT(res *lift.Result, t Theme) string {
	var b strings.Builder
	b.WriteString("digraph il {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  compound=true;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteByte('\n')

	node := func(inst, blk int) string { return fmt.Sprintf("i%d_b%d", inst, blk) }

	entries := res.Entries()
	for i, e := range entries {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    color=%q;\n", t.ClusterBorder)
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(fmt.Sprintf("0x%x: %s", e.Address, e.Inst.Text)))
		for _, blk := range e.Graph.Blocks() {
			var lines []string
			for _, op := range blk.Operations() {
				lines = append(lines, dotEscape(truncLabel(op.String(), 80)))
			}
			label := "&#8709;"
			if len(lines) > 0 {
				label = strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"
			}
			fmt.Fprintf(&b, "    %s [label=<%s>];\n", node(i, blk.Index()), label)
		}
		for _, edge := range e.Graph.Edges() {
			if edge.Cond == nil {
				fmt.Fprintf(&b, "    %s -> %s [color=%q];\n", node(i, edge.Head), node(i, edge.Tail), t.EdgeDirect)
				continue
			}
			fmt.Fprintf(&b, "    %s -> %s [color=%q, label=<<font point-size=\"7\">%s</font>>];\n",
				node(i, edge.Head), node(i, edge.Tail), t.EdgeTaken, dotEscape(edge.Cond.String()))
		}
		b.WriteString("  }\n")
	}

	for i := 0; i+1 < len(entries); i++ {
		next := node(i+1, entries[i+1].Graph.Entry())
		for _, x := range entries[i].Graph.Exits() {
			fmt.Fprintf(&b, "  %s -> %s [style=dashed, color=%q];\n", node(i, x), next, t.ClusterBorder)
		}
	}

	if len(entries) > 0 {
		last := len(entries) - 1
		for j, s := range res.Successors().All() {
			id := fmt.Sprintf("succ%d", j)
			fmt.Fprintf(&b, "  %s [shape=plaintext, style=\"\", fontcolor=%q, label=%q];\n",
				id, t.ExternalText, truncLabel(s.String(), 60))
			for _, x := range entries[last].Graph.Exits() {
				fmt.Fprintf(&b, "  %s -> %s [style=dashed, color=%q];\n", node(last, x), id, t.EdgeDirect)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
