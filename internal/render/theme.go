package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by transfer kind.
	EdgeTaken       string // guarded edge, condition holds
	EdgeFallthrough string // guarded edge, condition fails
	EdgeDirect      string // unconditional edge
	EdgeIndirect    string // dynamic target

	// Node accents.
	EntryBorder  string // entry block outline
	TermFill     string // blocks with no successor in the graph
	ExternalText string // successors outside the graph

	// Cluster styling.
	ClusterBorder string // per-instruction subgraph border
	ClusterLabel  string // per-instruction subgraph label text
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTaken:       "#0B3D91", // NASA blue
	EdgeFallthrough: "#FC3D21", // NASA red
	EdgeDirect:      "#424242", // dark gray
	EdgeIndirect:    "#E65100", // deep orange

	EntryBorder:  "#0B3D91",
	TermFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
