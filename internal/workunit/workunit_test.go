package workunit_test

import (
	"testing"

	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/config"
	"github.com/jawa-analysis/heapsum/internal/context"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/slot"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/internal/token"
	"github.com/jawa-analysis/heapsum/internal/workunit"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

var pos = token.Position{}

// boxSetMethod builds the lowered form of:
//
//	void set(Box b, Object o) { b.f = o; }
//
// the canonical boundary example this package's HeapSummaryRule
// extraction is expected to reproduce exactly: Arg(0).f <- Arg(1).
func boxSetMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.Access("b", "f"), ir.Name("o"))},
			{Index: 1, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	return &external.Method{
		Sig: "Box.set(LBox;LObject;)V",
		ParamList: []ast.Param{
			{Name: "b", Type: ast.Type{Name: "Box"}},
			{Name: "o", Type: ast.Type{Name: "Object"}},
		},
		LoweredBody: body,
	}
}

func TestRunHeap_FieldStoreProducesArgToArgRule(t *testing.T) {
	method := boxSetMethod()
	req := workunit.Request{
		Method: method,
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	if s.Incomplete {
		t.Fatalf("expected a complete summary")
	}

	var matched bool
	for _, r := range s.Rules {
		if r.Kind() != summary.RuleHeap || r.HeapOp() != summary.HeapStore {
			continue
		}
		if r.Dst().String() == "arg(0).f" && r.Src().String() == "arg(1)" {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("expected a store rule arg(0).f <- arg(1), got rules: %v", s.Rules)
	}
}

// localAllocNeverLeaksMethod builds:
//
//	void set(Box b) { Object local = new Object(); b.f = local; }
//
// local has no caller-visible path, so the HeapMap's closure invariant
// must keep it out of the emitted summary.
func localAllocNeverLeaksMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.Name("local"), ir.New("Object", nil))},
			{Index: 1, Stmt: ir.Assign(pos, ir.Access("b", "f"), ir.Name("local"))},
			{Index: 2, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	return &external.Method{
		Sig: "Box.setLocal(LBox;)V",
		ParamList: []ast.Param{
			{Name: "b", Type: ast.Type{Name: "Box"}},
		},
		LoweredBody: body,
	}
}

func TestRunHeap_LocalAllocationNeverLeaksIntoSummary(t *testing.T) {
	req := workunit.Request{
		Method: localAllocNeverLeaksMethod(),
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	for _, r := range s.Rules {
		if r.Kind() == summary.RuleHeap && r.HeapOp() == summary.HeapStore {
			t.Fatalf("expected no store rule for a purely local allocation, got %s", r)
		}
	}
}

// returningAnArgumentMethod builds:
//
//	Object identity(Object o) { return o; }
func returningAnArgumentMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Return(pos, "o", true, ir.ReturnObject)},
		},
	}
	return &external.Method{
		Sig: "Identity.identity(LObject;)LObject;",
		ParamList: []ast.Param{
			{Name: "o", Type: ast.Type{Name: "Object"}},
		},
		LoweredBody: body,
	}
}

func TestRunHeap_ReturnOfArgumentProducesCopyToRet(t *testing.T) {
	req := workunit.Request{
		Method: returningAnArgumentMethod(),
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	var found bool
	for _, r := range s.Rules {
		if r.Kind() == summary.RuleHeap && r.HeapOp() == summary.HeapCopy &&
			r.Dst().String() == "ret" && r.Src().String() == "arg(0)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected copy rule ret <- arg(0), got: %v", s.Rules)
	}
}

func TestRunHeap_PublishesIntoManager(t *testing.T) {
	mgr := summary.NewManager()
	method := boxSetMethod()
	req := workunit.Request{
		Method:  method,
		Global:  external.NewMapGlobal(),
		Manager: mgr,
		Config:  config.Default(),
	}

	if _, err := workunit.RunHeap(req); err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	published, ok := mgr.GetHeapSummary(method.Signature())
	if !ok {
		t.Fatalf("expected a published heap summary for %s", method.Signature())
	}
	if len(published.Rules) == 0 {
		t.Fatalf("published summary has no rules")
	}
}

// boxGetMethod builds the lowered form of:
//
//	Object get(Box b) { return b.f; }
//
// the paired worked example to boxSetMethod: a field read through a
// tracked base that no statement in this method ever writes must still
// publish a HeapLoad rule for the read path, not an empty summary.
func boxGetMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.Name("t"), ir.Access("b", "f"))},
			{Index: 1, Stmt: ir.Return(pos, "t", true, ir.ReturnObject)},
		},
	}
	return &external.Method{
		Sig: "Box.get(LBox;)LObject;",
		ParamList: []ast.Param{
			{Name: "b", Type: ast.Type{Name: "Box"}},
		},
		LoweredBody: body,
	}
}

func TestRunHeap_FieldReadThenReturnProducesHeapLoadRule(t *testing.T) {
	req := workunit.Request{
		Method: boxGetMethod(),
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	var found bool
	for _, r := range s.Rules {
		if r.Kind() == summary.RuleHeap && r.HeapOp() == summary.HeapLoad &&
			r.Dst().String() == "ret" && r.Src().String() == "arg(0).f" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected load rule ret <- arg(0).f, got: %v", s.Rules)
	}
}

// staticStoreMethod builds:
//
//	void setStatic(Object o) { Holder.instance = o; }
func staticStoreMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.StaticAccess("Holder.instance"), ir.Name("o"))},
			{Index: 1, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
		},
	}
	return &external.Method{
		Sig: "Holder.setStatic(LObject;)V",
		ParamList: []ast.Param{
			{Name: "o", Type: ast.Type{Name: "Object"}},
		},
		LoweredBody: body,
	}
}

func TestRunHeap_StaticFieldStoreProducesGlobalRule(t *testing.T) {
	req := workunit.Request{
		Method: staticStoreMethod(),
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	var found bool
	for _, r := range s.Rules {
		if r.Kind() == summary.RuleHeap && r.HeapOp() == summary.HeapStore &&
			r.Dst().String() == "global(Holder.instance)" && r.Src().String() == "arg(0)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected store rule global(Holder.instance) <- arg(0), got: %v", s.Rules)
	}
}

// staticLoadMethod builds:
//
//	Object getStatic() { return Holder.instance; }
func staticLoadMethod() *external.Method {
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.Assign(pos, ir.Name("t"), ir.StaticAccess("Holder.instance"))},
			{Index: 1, Stmt: ir.Return(pos, "t", true, ir.ReturnObject)},
		},
	}
	return &external.Method{
		Sig:         "Holder.getStatic()LObject;",
		LoweredBody: body,
	}
}

func TestRunHeap_StaticFieldLoadThenReturnProducesHeapLoadRule(t *testing.T) {
	req := workunit.Request{
		Method: staticLoadMethod(),
		Global: external.NewMapGlobal(),
		Config: config.Default(),
	}

	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("RunHeap: %v", err)
	}
	var found bool
	for _, r := range s.Rules {
		if r.Kind() == summary.RuleHeap && r.HeapOp() == summary.HeapLoad &&
			r.Dst().String() == "ret" && r.Src().String() == "global(Holder.instance)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected load rule ret <- global(Holder.instance), got: %v", s.Rules)
	}
}

// TestRunPT_CrossCallRebindsCalleePTRule exercises cross-call PT
// propagation end to end: the callee publishes a PT rule for its own
// Arg(0) at its entry point, a caller passes its own Arg(0) straight
// through as that call's argument, and RunPT on the caller must rebind
// the callee's rule onto the caller's own Arg(0) rather than dropping it
// at the call boundary.
func TestRunPT_CrossCallRebindsCalleePTRule(t *testing.T) {
	mgr := summary.NewManager()
	global := external.NewMapGlobal()

	callee := boxGetMethod()
	global.RegisterMethod(callee)

	calleeReq := workunit.Request{
		Method:  callee,
		Global:  global,
		Manager: mgr,
		Config:  config.Default(),
	}
	calleeQueries := []workunit.PTQuery{
		{Point: context.Entry(callee.Signature()), Slot: slot.Var("b")},
	}
	calleeSummary, err := workunit.RunPT(calleeReq, calleeQueries)
	if err != nil {
		t.Fatalf("callee RunPT: %v", err)
	}
	var calleeHasPT bool
	for _, r := range calleeSummary.Rules {
		if r.Kind() == summary.RulePT {
			calleeHasPT = true
		}
	}
	if !calleeHasPT {
		t.Fatalf("expected the callee to publish a PT rule for its own Arg(0), got: %v", calleeSummary.Rules)
	}

	// Object read(Box b2) { return get(b2); }
	body := ir.Body{
		Locations: []ir.Location{
			{Index: 0, Stmt: ir.AssignCall(pos, ir.Name("r"), &ir.Call{
				Signature: callee.Signature(),
				Kind:      ir.CallStatic,
				Args:      []ir.Temp{"b2"},
				Result:    "r",
				HasResult: true,
			})},
			{Index: 1, Stmt: ir.Return(pos, "r", true, ir.ReturnObject)},
		},
	}
	caller := &external.Method{
		Sig: "Holder.read(LBox;)LObject;",
		ParamList: []ast.Param{
			{Name: "b2", Type: ast.Type{Name: "Box"}},
		},
		LoweredBody: body,
	}

	callerReq := workunit.Request{
		Method:  caller,
		Global:  global,
		Manager: mgr,
		Config:  config.Default(),
	}
	callerSummary, err := workunit.RunPT(callerReq, nil)
	if err != nil {
		t.Fatalf("caller RunPT: %v", err)
	}

	var rebound bool
	for _, r := range callerSummary.Rules {
		if r.Kind() != summary.RulePT {
			continue
		}
		if r.Point().Method == callee.Signature() && r.PTBase().String() == "arg(0)" {
			rebound = true
		}
	}
	if !rebound {
		t.Fatalf("expected a cross-call-rebound PT rule over the caller's own arg(0), got: %v", callerSummary.Rules)
	}
}

func TestRunHeap_TimesOutNonFatally(t *testing.T) {
	method := boxSetMethod()
	cfg := config.Default()
	cfg.Timeout = 0 // forces WithTimeout's deadline to already be past.

	req := workunit.Request{
		Method: method,
		Global: external.NewMapGlobal(),
		Config: cfg,
	}
	// A zero timeout means the fixpoint's context is already expired before
	// the first iteration; RunHeap must still return a (possibly empty,
	// Incomplete) summary rather than an error.
	s, err := workunit.RunHeap(req)
	if err != nil {
		t.Fatalf("timeout must be reported via Incomplete, not an error: %v", err)
	}
	if !s.Incomplete {
		t.Fatalf("expected Incomplete=true for an already-expired timeout")
	}
}
