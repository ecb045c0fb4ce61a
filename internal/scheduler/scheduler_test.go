package scheduler_test

import (
	"context"
	"testing"

	"github.com/jawa-analysis/heapsum/internal/config"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/scheduler"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/internal/token"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

var pos = token.Position{}

func leafMethod(sig string) *external.Method {
	return &external.Method{
		Sig: sig,
		LoweredBody: ir.Body{
			Locations: []ir.Location{
				{Index: 0, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
			},
		},
	}
}

func TestTarjanOrder_CalleeBeforeCaller(t *testing.T) {
	// a -> b -> c, a straight chain; c must be analyzed before b, b before a.
	graph := scheduler.CallGraph{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
	}
	methods := map[string]external.JawaMethod{
		"a": leafMethod("a"),
		"b": leafMethod("b"),
		"c": leafMethod("c"),
	}

	mgr := summary.NewManager()
	outcomes := scheduler.Run(context.Background(), graph, methods, external.NewMapGlobal(), nil, mgr, config.Default())

	posIdx := make(map[string]int, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("%s: %v", o.Signature, o.Err)
		}
		posIdx[o.Signature] = i
	}
	if !(posIdx["c"] < posIdx["b"] && posIdx["b"] < posIdx["a"]) {
		t.Fatalf("expected c before b before a, got order %v", outcomes)
	}
}

func TestRun_CyclicSCCScheduledTogether(t *testing.T) {
	// Mutual recursion: x <-> y must land in the same SCC.
	graph := scheduler.CallGraph{
		"x": {"y"},
		"y": {"x"},
	}
	methods := map[string]external.JawaMethod{
		"x": leafMethod("x"),
		"y": leafMethod("y"),
	}

	outcomes := scheduler.Run(context.Background(), graph, methods, external.NewMapGlobal(), nil, summary.NewManager(), config.Default())
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("%s: %v", o.Signature, o.Err)
		}
	}
}

func TestRun_MissingMethodCollectedNotFatal(t *testing.T) {
	graph := scheduler.CallGraph{"missing": nil, "present": nil}
	methods := map[string]external.JawaMethod{"present": leafMethod("present")}

	outcomes := scheduler.Run(context.Background(), graph, methods, external.NewMapGlobal(), nil, summary.NewManager(), config.Default())

	var sawMissingErr, sawPresentOK bool
	for _, o := range outcomes {
		switch o.Signature {
		case "missing":
			sawMissingErr = o.Err != nil
		case "present":
			sawPresentOK = o.Err == nil
		}
	}
	if !sawMissingErr {
		t.Fatalf("expected an error outcome for the missing method")
	}
	if !sawPresentOK {
		t.Fatalf("expected the present method to still be analyzed")
	}
}

func TestRun_EachOutcomeGetsADistinctDispatchID(t *testing.T) {
	graph := scheduler.CallGraph{"a": nil, "b": nil, "c": nil}
	methods := map[string]external.JawaMethod{
		"a": leafMethod("a"),
		"b": leafMethod("b"),
		"c": leafMethod("c"),
	}

	outcomes := scheduler.Run(context.Background(), graph, methods, external.NewMapGlobal(), nil, summary.NewManager(), config.Default())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	seen := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if o.Dispatch.String() == "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("%s: expected a non-zero dispatch id", o.Signature)
		}
		if seen[o.Dispatch.String()] {
			t.Fatalf("%s: dispatch id %s reused across outcomes", o.Signature, o.Dispatch)
		}
		seen[o.Dispatch.String()] = true
	}
}
