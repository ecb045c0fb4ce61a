package rfa

import "github.com/jawa-analysis/heapsum/internal/ir"

// NodeKind discriminates an ICFG node's role: call, return, entry, exit,
// or a plain intraprocedural statement node.
type NodeKind int

const (
	NodeEntry NodeKind = iota
	NodeNormal
	NodeCall
	NodeExit
)

// Node is one ICFG node. Normal and call nodes carry the Location they
// were built from; Index is that Location's position in the body
// (-1 for the synthetic entry/exit nodes).
type Node struct {
	Kind  NodeKind
	Index int
	Loc   ir.Location
	Succs []int
	Preds []int
}

// ICFG is the intraprocedural control-flow graph of one method body,
// augmented on the fly with resolved callees via call nodes.
// Node 0 is always the entry; the last node is always the exit. Call
// nodes never gain a dedicated return node of their own: the resolver's
// effect is applied inline at the call node itself.
type ICFG struct {
	Nodes      []Node
	EntryIndex int
	ExitIndex  int
}

// Build constructs the ICFG for a lowered method body. Exception edges are
// added conservatively from every location inside a catch clause's
// [Start, End) range to its handler target, since a statement anywhere in
// a protected region may transfer control to the handler; this only adds
// successors, so it can only widen (never narrow) the fixpoint's result.
func Build(body ir.Body) *ICFG {
	n := len(body.Locations)
	g := &ICFG{Nodes: make([]Node, n+2)}
	g.EntryIndex = 0
	g.ExitIndex = n + 1

	g.Nodes[g.EntryIndex] = Node{Kind: NodeEntry, Index: -1}
	g.Nodes[g.ExitIndex] = Node{Kind: NodeExit, Index: -1}

	labelIndex := make(map[ir.Label]int, n)
	for i, loc := range body.Locations {
		if loc.Label != "" {
			labelIndex[loc.Label] = i + 1 // +1: node indices are offset past the entry node
		}
	}

	for i, loc := range body.Locations {
		nodeIdx := i + 1
		kind := NodeNormal
		if loc.Stmt.Kind == ir.StmtCall || (loc.Stmt.Kind == ir.StmtAssign && loc.Stmt.Call != nil) {
			kind = NodeCall
		}
		g.Nodes[nodeIdx] = Node{Kind: kind, Index: i, Loc: loc}
	}

	connect := func(from, to int) {
		g.Nodes[from].Succs = append(g.Nodes[from].Succs, to)
		g.Nodes[to].Preds = append(g.Nodes[to].Preds, from)
	}

	if n == 0 {
		connect(g.EntryIndex, g.ExitIndex)
	} else {
		connect(g.EntryIndex, 1)
	}

	for i, loc := range body.Locations {
		nodeIdx := i + 1
		fallthroughIdx := nodeIdx + 1
		if fallthroughIdx > n {
			fallthroughIdx = g.ExitIndex
		}
		switch loc.Stmt.Kind {
		case ir.StmtGoto:
			connect(nodeIdx, labelIndex[loc.Stmt.GotoTarget])
		case ir.StmtIf:
			connect(nodeIdx, fallthroughIdx)
			connect(nodeIdx, labelIndex[loc.Stmt.Target])
		case ir.StmtReturn, ir.StmtThrow:
			connect(nodeIdx, g.ExitIndex)
		default:
			connect(nodeIdx, fallthroughIdx)
		}
	}

	for _, cat := range body.Catches {
		startIdx, endIdx := labelIndex[cat.Start], labelIndex[cat.End]
		targetIdx := labelIndex[cat.Target]
		for idx := startIdx; idx < endIdx; idx++ {
			connect(idx, targetIdx)
		}
	}

	return g
}
