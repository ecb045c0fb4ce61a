// Package workunit implements HS-WU and PT-WU: the per-method
// orchestration that builds a method's ICFG, seeds its entry facts, runs
// the reaching-facts fixpoint, and walks the converged result to maintain
// a HeapMap and emit SummaryRules. The shape follows a named sequence of
// stages run over a shared context, continuing past per-stage errors to
// collect diagnostics: a work unit is the same idea specialized to exactly four
// fixed stages — build, seed, fix, extract — rather than a generic
// Processor chain, since those stages never vary per call.
package workunit

import (
	stdcontext "context"
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/callresolver"
	"github.com/jawa-analysis/heapsum/internal/config"
	ctxpkg "github.com/jawa-analysis/heapsum/internal/context"
	"github.com/jawa-analysis/heapsum/internal/heap"
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/ptstore"
	"github.com/jawa-analysis/heapsum/internal/rfa"
	"github.com/jawa-analysis/heapsum/internal/slot"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

// Request bundles one method's collaborators: the method itself and the
// (shared, read-only) Global/Handler/Manager every work unit in a run is
// dispatched against. Store is only consulted by RunPT; RunHeap leaves it
// nil-safe.
type Request struct {
	Method  external.JawaMethod
	Global  external.Global
	Handler external.ModelCallHandler
	Manager external.SummaryManager
	Config  *config.EngineConfig
	Store   *ptstore.Store
}

// PTQuery is one pending points-to resolution request PT-WU must answer
// for a method, drawn from the `pointsToResolve: Context -> set of
// (Slot, trackHeap?)` map.
type PTQuery struct {
	Point     ctxpkg.Context
	Slot      slot.Slot
	TrackHeap bool
}

// fixpointRun holds everything the fixpoint stage produces, shared by both
// RunHeap and RunPT so neither has to re-derive it.
type fixpointRun struct {
	icfg   *rfa.ICFG
	pool   *instance.Pool
	result *rfa.Result
	heap   *heap.Map
}

func (r Request) config() *config.EngineConfig {
	if r.Config != nil {
		return r.Config
	}
	return config.Default()
}

// runFixpoint is the build+seed+fix stage common to HS-WU and PT-WU.
func runFixpoint(req Request) (*fixpointRun, error) {
	icfg := rfa.Build(req.Method.Body())
	pool := instance.NewPool()
	entryFacts, hm := seedEntry(req.Method, pool)

	resolver := &callresolver.Resolver{Global: req.Global, Handler: req.Handler, Manager: req.Manager}

	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), req.config().Timeout)
	defer cancel()

	result, err := rfa.RunFixpoint(ctx, icfg, entryFacts, pool, req.Method.Signature(), resolver)
	if err != nil {
		return nil, fmt.Errorf("work unit %s: %w", req.Method.Signature(), err)
	}
	return &fixpointRun{icfg: icfg, pool: pool, result: result, heap: hm}, nil
}

// seedEntry synthesizes the method's initial facts and heap-map roots:
// one unknown=true instance per formal parameter, bound to Arg(i), and
// (if the method has a receiver) one unknown=false instance bound to
// This.
func seedEntry(method external.JawaMethod, pool *instance.Pool) (rfa.FactSet, *heap.Map) {
	facts := rfa.NewFactSet()
	hm := heap.NewMap()

	if this, ok := method.ThisParam(); ok {
		id := pool.Intern(instance.Instance{
			Type:    instance.Type{Name: this.Type.Name},
			DefSite: instance.DefSite{Method: method.Signature(), Index: -1, Label: "entry:this"},
			Unknown: false,
		})
		facts.Gen(slot.Var(this.Name), id)
		hm.Record(id, heap.NewBase(heap.This()))
	}

	for i, p := range method.Params() {
		id := pool.Intern(instance.Instance{
			Type:    instance.Type{Name: p.Type.Name},
			DefSite: instance.DefSite{Method: method.Signature(), Index: -1, Label: fmt.Sprintf("entry:arg%d", i)},
			Unknown: true,
		})
		facts.Gen(slot.Var(p.Name), id)
		hm.Record(id, heap.NewBase(heap.Arg(i)))
	}

	return facts, hm
}

// RunHeap is HS-WU: run the fixpoint, then walk the converged result once,
// in program order, maintaining the HeapMap and emitting the
// HeapSummaryRules it implies. If req.Manager is non-nil the result is
// published before it is returned.
func RunHeap(req Request) (*summary.Summary, error) {
	run, err := runFixpoint(req)
	if err != nil {
		return nil, err
	}

	rules := extractHeapRules(run.icfg, run.result, run.heap)
	s := &summary.Summary{
		MethodSignature: req.Method.Signature(),
		Rules:           rules,
		Incomplete:      run.result.Incomplete,
	}
	if req.Manager != nil {
		req.Manager.Publish(req.Method.Signature(), summary.KindHeap, s)
	}
	return s, nil
}

// RunPT is PT-WU: run the fixpoint (independently of any prior
// RunHeap call — a work unit's pool and fact sets never outlive it), then
// answer each query by resolving its slot at its program point against the
// converged facts. A queried instance with a recorded HeapMap path yields a
// PTSummaryRule a caller can replay against its own context; one with no
// recorded path is an instance local to this method's own allocation and is
// recorded directly into the shared PTStore instead; the instance never
// leaves the method's scope either way. A second stage, crossCallPT, then
// walks every call node in the method and continues the resolution of any
// pending PT rules already published for the call's resolved callee(s),
// propagating queries across the call boundary instead of stopping at it.
func RunPT(req Request, queries []PTQuery) (*summary.Summary, error) {
	run, err := runFixpoint(req)
	if err != nil {
		return nil, err
	}

	points := indexProgramPoints(run.icfg, req.Method.Body())

	var rules []summary.Rule
	for _, q := range queries {
		idx, ok := points[q.Point.Point]
		if !ok {
			idx = run.icfg.EntryIndex
		}
		facts := run.result.In[idx]
		for id := range facts.Pts(q.Slot) {
			if path, tracked := run.heap.Lookup(id); tracked {
				rules = append(rules, summary.PTSummaryRule(path, q.Point, q.Slot, q.TrackHeap))
				continue
			}
			if req.Store != nil {
				req.Store.RecordResolved(ptstore.Key{Context: q.Point, Slot: q.Slot}, id)
			}
		}
	}

	rules = append(rules, crossCallPT(req, run)...)

	s := &summary.Summary{
		MethodSignature: req.Method.Signature(),
		Rules:           rules,
		Incomplete:      run.result.Incomplete,
	}
	if req.Manager != nil {
		req.Manager.Publish(req.Method.Signature(), summary.KindPT, s)
	}
	return s, nil
}

// crossCallPT implements PT-WU's cross-call propagation: for every call node
// in the method's ICFG whose resolved callee(s) already carry a published PT
// summary, each of the callee's still-pending PT rules is rebound against
// this call site's concrete arguments and re-bound instances, continuing the
// resolution the callee itself could not finish without caller-side
// context. A callee PT rule's (Point, Slot) already names a (method, point)
// pair globally, since context.Context carries the method signature — so
// it never needs translation as it crosses a call boundary, only its PTBase
// does, via the same root/access resolution applySummary uses for heap
// rules. A rebind that lands on an instance with an established HeapMap
// path in this method republishes the rule, now expressed over this
// method's own roots, for this method's own callers to continue resolving
// in turn; one that lands on a concrete, untracked instance resolves
// directly into the shared PTStore instead.
func crossCallPT(req Request, run *fixpointRun) []summary.Rule {
	if req.Manager == nil {
		return nil
	}
	resolver := &callresolver.Resolver{Global: req.Global}

	var rules []summary.Rule
	for idx := 1; idx < run.icfg.ExitIndex; idx++ {
		node := run.icfg.Nodes[idx]
		if node.Kind != rfa.NodeCall {
			continue
		}
		call := node.Loc.Stmt.Call
		in := run.result.In[idx]

		for _, sig := range resolver.CalleeSet(call, in, run.pool) {
			calleePT, ok := req.Manager.GetPTSummary(sig)
			if !ok {
				continue
			}
			for _, rule := range calleePT.Rules {
				if rule.Kind() != summary.RulePT {
					continue
				}
				for _, s := range callresolver.LocationSlots(rule.PTBase(), call, in) {
					for id := range in.Pts(s) {
						if path, tracked := run.heap.Lookup(id); tracked {
							rules = append(rules, summary.PTSummaryRule(path, rule.Point(), rule.PointSlot(), rule.TrackHeap()))
							continue
						}
						if req.Store != nil {
							req.Store.RecordResolved(ptstore.Key{Context: rule.Point(), Slot: rule.PointSlot()}, id)
						}
					}
				}
			}
		}
	}
	return rules
}

// indexProgramPoints maps a context.Context's Point string ("entry", or a
// location label) to the ICFG node carrying the in-facts PT-WU should
// query. Unlabeled locations are addressed by their Location.Index, since
// context.At's doc comment only requires "typically the IR location's
// display label" — labels are optional, indices are not.
func indexProgramPoints(icfg *rfa.ICFG, body ir.Body) map[string]int {
	points := map[string]int{"entry": icfg.EntryIndex}
	for i, loc := range body.Locations {
		nodeIdx := i + 1
		if loc.Label != "" {
			points[string(loc.Label)] = nodeIdx
		}
		points[fmt.Sprintf("L%d", loc.Index)] = nodeIdx
	}
	return points
}

// extractHeapRules is the rule-extraction walk, run once over the
// converged fixpoint in ascending node-index (roughly program) order.
// HeapMap maintenance happens here, not mid-fixpoint (internal/rfa and
// internal/callresolver never import internal/heap's Map): the map only
// needs to reflect one consistent reading of the converged facts, and
// building it during the fixpoint's iterate-to-a-fixed-point loop would
// mean discarding and rebuilding it on every re-visit of a node for no
// benefit.
func extractHeapRules(icfg *rfa.ICFG, result *rfa.Result, hm *heap.Map) []summary.Rule {
	var rules []summary.Rule
	// loaded remembers, per temp, the symbolic path a field/array load read
	// through a tracked base evaluated to — even when the load found no
	// concrete instance at that path. A later store or return of that same
	// temp falls back to this symbolic path (a HeapLoad rule) exactly when
	// no concrete instance reached it either, so a field read-then-returned
	// with nothing else known about it still publishes the load instead of
	// silently dropping it.
	loaded := make(map[ir.Temp]heap.Base)
	for idx := 1; idx < icfg.ExitIndex; idx++ {
		node := icfg.Nodes[idx]
		if node.Kind != rfa.NodeNormal && node.Kind != rfa.NodeCall {
			continue
		}
		s := node.Loc.Stmt
		in := result.In[idx]
		switch s.Kind {
		case ir.StmtAssign:
			if s.Call == nil {
				rules = append(rules, processHeapAssign(s, in, hm, loaded)...)
			}
		case ir.StmtReturn:
			if s.HasValue {
				rules = append(rules, processReturn(s, in, hm, loaded)...)
			}
		}
	}
	return rules
}

// processHeapAssign applies the RHS and LHS heap-map maintenance rules
// to one plain (non-call) assignment, using in — the node's pre-statement
// facts — throughout, matching the read-before-kill discipline
// internal/rfa's transferAssign already established for the fact set
// itself. loaded is shared across the whole extraction walk; a field/array/
// static-field load through a tracked base always records its symbolic path
// here, even when in.Pts at that path carries no concrete instance — that
// symbolic path is what lets a later store or return of the loaded temp
// still publish a HeapLoad rule instead of silently dropping an unresolved
// read.
//
// A static field has no base instance to look up in hm — Global(fqn) is its
// own root, always tracked, never requiring a base-instance lookup the way
// Field/Array paths do.
func processHeapAssign(s ir.Stmt, in rfa.FactSet, hm *heap.Map, loaded map[ir.Temp]heap.Base) []summary.Rule {
	switch s.RHS.Kind {
	case ir.ExprAccess:
		for baseID := range in.Pts(slot.Var(string(s.RHS.Base))) {
			basePath, tracked := hm.Lookup(baseID)
			if !tracked {
				continue
			}
			loaded[s.LHS.Name] = basePath.Make(heap.FieldAcc(s.RHS.Field))
			for id := range in.Pts(slot.Field(baseID, s.RHS.Field)) {
				hm.Record(id, basePath.Make(heap.FieldAcc(s.RHS.Field)))
			}
		}
	case ir.ExprIndex:
		for baseID := range in.Pts(slot.Var(string(s.RHS.Base))) {
			basePath, tracked := hm.Lookup(baseID)
			if !tracked {
				continue
			}
			loaded[s.LHS.Name] = basePath.Make(heap.ArrayAcc())
			for id := range in.Pts(slot.Array(baseID)) {
				hm.Record(id, basePath.Make(heap.ArrayAcc()))
			}
		}
	case ir.ExprStaticAccess:
		globalPath := heap.NewBase(heap.Global(s.RHS.FQN))
		loaded[s.LHS.Name] = globalPath
		for id := range in.Pts(slot.StaticField(s.RHS.FQN)) {
			hm.Record(id, globalPath)
		}
	}

	var rules []summary.Rule
	switch s.LHS.Kind {
	case ir.ExprAccess:
		for baseID := range in.Pts(slot.Var(string(s.LHS.Base))) {
			basePath, tracked := hm.Lookup(baseID)
			if !tracked {
				continue
			}
			dst := basePath.Make(heap.FieldAcc(s.LHS.Field))
			hm.Kill(idList(in.Pts(slot.Field(baseID, s.LHS.Field))))
			rules = append(rules, recordStore(hm, dst, in.Pts(slot.Var(string(s.RHS.Name))), s.RHS.Name, loaded)...)
		}
	case ir.ExprIndex:
		for baseID := range in.Pts(slot.Var(string(s.LHS.Base))) {
			basePath, tracked := hm.Lookup(baseID)
			if !tracked {
				continue
			}
			dst := basePath.Make(heap.ArrayAcc())
			hm.Kill(idList(in.Pts(slot.Array(baseID))))
			rules = append(rules, recordStore(hm, dst, in.Pts(slot.Var(string(s.RHS.Name))), s.RHS.Name, loaded)...)
		}
	case ir.ExprStaticAccess:
		dst := heap.NewBase(heap.Global(s.LHS.FQN))
		hm.Kill(idList(in.Pts(slot.StaticField(s.LHS.FQN))))
		rules = append(rules, recordStore(hm, dst, in.Pts(slot.Var(string(s.RHS.Name))), s.RHS.Name, loaded)...)
	}
	return rules
}

// recordStore records dst as each stored instance's path (first-writer-
// wins, so an instance already reachable some other way keeps that path)
// and emits a HeapStore rule only for instances that already had an
// established path before this store: an instance with no prior path is
// purely local to this method and must never leak into its summary, per
// the HeapMap's closure invariant. When stored carries no concrete
// instance at all, srcTemp's recorded symbolic load path (if any) is
// stored instead, as a HeapLoad rule — the source value is unresolved
// rather than absent.
func recordStore(hm *heap.Map, dst heap.Base, stored map[instance.ID]struct{}, srcTemp ir.Temp, loaded map[ir.Temp]heap.Base) []summary.Rule {
	var rules []summary.Rule
	for id := range stored {
		src, hadPath := hm.Lookup(id)
		hm.Record(id, dst)
		if hadPath {
			rules = append(rules, summary.HeapSummaryRule(summary.HeapStore, dst, src))
		}
	}
	if len(stored) == 0 {
		if src, ok := loaded[srcTemp]; ok {
			rules = append(rules, summary.HeapSummaryRule(summary.HeapLoad, dst, src))
		}
	}
	return rules
}

// processReturn emits a HeapCopy rule from the returned instance's
// established path (if any) to Ret, the same "only a tracked source leaks"
// rule processHeapAssign applies to field/array stores. When the returned
// temp carries no concrete instance but was itself loaded from a tracked
// base, the load's symbolic path is published as a HeapLoad rule instead —
// e.g. `return b.f` with nothing known about the field's contents still
// publishes `Ret <- Arg(0).f` rather than an empty summary.
func processReturn(s ir.Stmt, in rfa.FactSet, hm *heap.Map, loaded map[ir.Temp]heap.Base) []summary.Rule {
	var rules []summary.Rule
	ids := in.Pts(slot.Var(string(s.ReturnValue)))
	for id := range ids {
		if src, tracked := hm.Lookup(id); tracked {
			rules = append(rules, summary.HeapSummaryRule(summary.HeapCopy, heap.NewBase(heap.Ret()), src))
		}
	}
	if len(ids) == 0 {
		if src, ok := loaded[s.ReturnValue]; ok {
			rules = append(rules, summary.HeapSummaryRule(summary.HeapLoad, heap.NewBase(heap.Ret()), src))
		}
	}
	return rules
}

func idList(ids map[instance.ID]struct{}) []instance.ID {
	out := make([]instance.ID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}
