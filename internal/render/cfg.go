package render

import (
	"fmt"
	"strings"

	"armlift/internal/explore"
	"armlift/internal/lift"
)

// CFGDOT renders explored blocks as DOT, one node per block listing its
// instructions. The entry block is highlighted. Conditional edges use T/F
// colors; successors the explorer did not follow are drawn as plain text.
func CFGDOT(g *explore.Graph, name string, t Theme) string {
	if len(g.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(name))
	b.WriteByte('\n')

	for _, blk := range g.Blocks {
		var lines []string
		for _, e := range blk.Result.Entries() {
			lines = append(lines, dotEscape(fmt.Sprintf("0x%x: %s", e.Address, e.Inst.Text)))
		}
		if len(lines) > 12 {
			kept := append(lines[:5:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.Start == g.Entry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
		}
		if !hasInternalSucc(g, blk) {
			attrs += fmt.Sprintf(", fillcolor=%q", t.TermFill)
		}
		fmt.Fprintf(&b, "  %s [label=<%s>%s];\n", blockID(blk.Start), label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range g.Blocks {
		succs := blk.Result.Successors()
		for i, s := range succs.All() {
			if !s.Static() {
				continue
			}
			if _, ok := g.Block(s.Address); !ok {
				continue
			}
			writeEdge(&b, blockID(blk.Start), blockID(s.Address), edgeLabel(succs, i), t)
		}
	}

	for i, x := range g.Exits {
		id := fmt.Sprintf("x%d", i)
		text := x.Succ.String()
		fmt.Fprintf(&b, "  %s [shape=plaintext, style=\"\", fontcolor=%q, label=%q];\n",
			id, t.ExternalText, truncLabel(text+" ("+x.Reason+")", 60))
		color := t.EdgeDirect
		if !x.Succ.Static() {
			color = t.EdgeIndirect
		}
		fmt.Fprintf(&b, "  %s -> %s [color=%q, style=dashed];\n", blockID(x.From), id, color)
	}

	b.WriteString("}\n")
	return b.String()
}

func blockID(addr uint64) string { return fmt.Sprintf("bb_%x", addr) }

func hasInternalSucc(g *explore.Graph, blk *explore.Block) bool {
	for _, s := range blk.Result.Successors().All() {
		if !s.Static() {
			continue
		}
		if _, ok := g.Block(s.Address); ok {
			return true
		}
	}
	return false
}

// edgeLabel returns "T" or "F" for the two halves of a conditional pair and
// "" otherwise.
func edgeLabel(succs lift.Successors, i int) string {
	if !succs.Conditional() {
		return ""
	}
	if i == 0 {
		return "T"
	}
	return "F"
}

func writeEdge(b *strings.Builder, from, to, cond string, t Theme) {
	switch cond {
	case "T":
		fmt.Fprintf(b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
			from, to, t.EdgeTaken, t.EdgeTaken)
	case "F":
		fmt.Fprintf(b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
			from, to, t.EdgeFallthrough, t.EdgeFallthrough)
	default:
		fmt.Fprintf(b, "  %s -> %s [color=%q];\n", from, to, t.EdgeDirect)
	}
}
