package rfa_test

import (
	"testing"

	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/rfa"
	"github.com/jawa-analysis/heapsum/internal/token"
)

var pos = token.Position{}

func TestBuild_EmptyBodyConnectsEntryToExit(t *testing.T) {
	g := rfa.Build(ir.Body{})
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (entry, exit) for an empty body, got %d", len(g.Nodes))
	}
	entry := g.Nodes[g.EntryIndex]
	if len(entry.Succs) != 1 || entry.Succs[0] != g.ExitIndex {
		t.Fatalf("expected entry to connect directly to exit, got succs %v", entry.Succs)
	}
}

func TestBuild_StraightLineFallsThroughToExit(t *testing.T) {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.Name("x"), ir.New("Object", nil))},
			{Index: 1, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	g := rfa.Build(body)
	if len(g.Nodes) != 4 { // entry, 2 statements, exit
		t.Fatalf("expected 4 nodes, got %d", len(g.Nodes))
	}
	// node 1 (x := new Object()) must fall through to node 2 (return).
	if got := g.Nodes[1].Succs; len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected statement 0 to fall through to statement 1, got succs %v", got)
	}
	// the return statement connects directly to exit.
	if got := g.Nodes[2].Succs; len(got) != 1 || got[0] != g.ExitIndex {
		t.Fatalf("expected the return statement to connect to exit, got succs %v", got)
	}
}

func TestBuild_IfStatementHasTwoSuccessors(t *testing.T) {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.If(pos, "c", "L_else")},
			{Index: 1, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
			{Index: 2, Label: "L_else", Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	g := rfa.Build(body)
	ifNode := g.Nodes[1]
	if len(ifNode.Succs) != 2 {
		t.Fatalf("expected the if-node to have 2 successors (fallthrough + branch), got %v", ifNode.Succs)
	}
	// node 2 is the fallthrough (return void), node 3 is the labeled else branch.
	succs := map[int]bool{ifNode.Succs[0]: true, ifNode.Succs[1]: true}
	if !succs[2] || !succs[3] {
		t.Fatalf("expected successors {2,3}, got %v", ifNode.Succs)
	}
}

func TestBuild_GotoJumpsToLabeledTarget(t *testing.T) {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Goto(pos, "L_end")},
			{Index: 1, Stmt: ir.Assign(pos, ir.Name("dead"), ir.New("Object", nil))},
			{Index: 2, Label: "L_end", Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	g := rfa.Build(body)
	gotoNode := g.Nodes[1]
	if len(gotoNode.Succs) != 1 || gotoNode.Succs[0] != 3 {
		t.Fatalf("expected the goto to jump straight to the labeled return node (3), got %v", gotoNode.Succs)
	}
}

func TestBuild_CatchClauseAddsHandlerEdges(t *testing.T) {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Label: "L_try", Stmt: ir.Assign(pos, ir.Name("x"), ir.New("Object", nil))},
			{Index: 1, Label: "L_tryEnd", Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
			{Index: 2, Label: "L_handler", Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
		Catches: []ir.CatchClause{
			{ExceptionType: "Exception", Start: "L_try", End: "L_tryEnd", Target: "L_handler"},
		},
	}
	g := rfa.Build(body)
	// node 1 (the try-region statement) must additionally connect to the
	// handler node (3), on top of its normal fallthrough edge.
	tryNode := g.Nodes[1]
	var sawHandler bool
	for _, s := range tryNode.Succs {
		if s == 3 {
			sawHandler = true
		}
	}
	if !sawHandler {
		t.Fatalf("expected the try-region node to have an edge to the handler node, got succs %v", tryNode.Succs)
	}
}
