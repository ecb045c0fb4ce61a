// Package callresolver implements the Call Resolver: the three-tier
// model-call / summary-apply / unknown-object resolution that
// internal/rfa delegates every call statement's transfer function to.
// The shape mirrors a builtin-dispatch table resolving a call name against
// a builtin table, then user-defined functions, then a "not found" error
// path — the same three-tier shape, repurposed here from
// "builtin vs. user function vs. error" to
// "model call vs. summary vs. unknown-object fallback".
package callresolver

import (
	"github.com/jawa-analysis/heapsum/internal/heap"
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/rfa"
	"github.com/jawa-analysis/heapsum/internal/slot"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

// Resolver implements rfa.CallResolver. It never re-descends into a
// callee's own fixpoint — all interprocedural effect comes from the
// summaries; needReturnNode is false by construction since nothing here
// ever asks the ICFG for a dedicated call-return node.
type Resolver struct {
	Global  external.Global
	Handler external.ModelCallHandler
	Manager external.SummaryManager

	// pool is set at the start of each Resolve call, per the method-local
	// pool a single work unit threads through its whole fixpoint.
	pool *instance.Pool
}

var _ rfa.CallResolver = (*Resolver)(nil)

// Resolve implements rfa.CallResolver.
func (r *Resolver) Resolve(call *ir.Call, in rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error) {
	r.pool = pool
	callees := r.calleeSet(call, in)

	out := in.Clone()
	if call.HasResult {
		out.Kill(slot.Var(string(call.Result)))
	}
	// pre is the pre-call state with the result slot already killed; every
	// candidate's contribution starts from it, so unioning a contribution
	// back into out never restores the result's old facts.
	pre := out.Clone()

	if len(callees) == 0 {
		// No resolvable callee at all (e.g. an empty receiver points-to
		// set): the conservative choice is the unknown-object fallback,
		// exactly as if a single unresolved callee had been found.
		return r.unknownFallback(call, in, out, pool, method, locIndex)
	}

	// Each candidate's contribution is computed independently from the
	// pre-call state pre and unioned into out. Unioning independently
	// computed candidate effects rather than threading one candidate's
	// output into the next is deliberately more conservative than strict
	// per-callee precision would require when the callee set has more
	// than one member (virtual dispatch over >1 concrete receiver type);
	// it can only add facts, never drop ones a sound analysis needs, so
	// the extra conservatism cannot introduce unsoundness.
	for _, sig := range callees {
		contribution, err := r.resolveOne(sig, call, pre, pool, method, locIndex)
		if err != nil {
			return nil, err
		}
		out.Union(contribution)
	}
	return out, nil
}

// CalleeSet resolves call's candidate callee signatures against pool and
// this resolver's Global collaborator. Exported so PT-WU's cross-call
// summary propagation (internal/workunit.RunPT) can reuse the same
// dispatch resolution Resolve applies internally, without running a full
// Resolve over a call it isn't itself transferring.
func (r *Resolver) CalleeSet(call *ir.Call, in rfa.FactSet, pool *instance.Pool) []string {
	r.pool = pool
	return r.calleeSet(call, in)
}

// calleeSet computes the candidate callee signatures for call, resolving
// virtual/interface dispatch against the receiver's current points-to
// set. Static, direct, and super calls always resolve to the
// single signature the lowering already annotated.
func (r *Resolver) calleeSet(call *ir.Call, in rfa.FactSet) []string {
	switch call.Kind {
	case ir.CallStatic, ir.CallDirect, ir.CallSuper:
		return []string{call.Signature}
	default: // CallVirtual, CallInterface
		seen := make(map[string]struct{})
		var sigs []string
		for id := range in.Pts(slot.Var(string(call.Receiver))) {
			typeName := r.instanceTypeName(id, in)
			override, ok := r.Global.ResolveOverride(call.Signature, typeName)
			sig := call.Signature
			if ok {
				sig = override.Signature()
			}
			if _, dup := seen[sig]; !dup {
				seen[sig] = struct{}{}
				sigs = append(sigs, sig)
			}
		}
		return sigs
	}
}

// instanceTypeName looks up id's declared type through the pool attached
// to the current fact set's instances. Since FactSet carries no pool
// reference of its own, this relies on the caller always interning the
// same instance.Pool the fixpoint itself uses; internal/workunit wires
// exactly one pool per work unit, since the abstract-instance pool is
// method-local.
func (r *Resolver) instanceTypeName(id instance.ID, _ rfa.FactSet) string {
	return r.pool.Lookup(id).Type.Name
}

// resolveOne applies the model-call / summary-apply / unknown-fallback
// tiers for a single resolved callee signature.
func (r *Resolver) resolveOne(sig string, call *ir.Call, in rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error) {
	if r.Handler != nil && r.Handler.IsModelCall(sig) {
		callForHandler := *call
		callForHandler.Signature = sig
		return r.Handler.DoModelCall(&callForHandler, in, pool, method, locIndex)
	}

	if r.Manager != nil {
		if s, ok := r.Manager.GetHeapSummary(sig); ok {
			return applySummary(s, call, in), nil
		}
	}

	out := in.Clone()
	return r.unknownFallback(call, in, out, pool, method, locIndex)
}

// applySummary binds a callee's published heap-summary roots to the
// caller's slots (This -> receiver, Arg(i) -> args[i], Global(fqn) ->
// static slot, Ret -> the call's result) and rewrites the fact set
// accordingly. A HeapBase's
// root and access list are resolved against the caller's current facts
// exactly as the engine resolves any other access path: walking each
// access in turn through the points-to set of its prefix, so a multi-
// level path like Arg(0).f.g lands on the same kind of slot.Field
// location a direct `x.f.g` statement would have produced.
func applySummary(s *summary.Summary, call *ir.Call, in rfa.FactSet) rfa.FactSet {
	out := in.Clone()
	for _, rule := range s.Rules {
		if rule.Kind() != summary.RuleHeap {
			continue
		}
		dstSlots := LocationSlots(rule.Dst(), call, in)
		switch rule.HeapOp() {
		case summary.HeapClear:
			for _, ds := range dstSlots {
				out.Kill(ds)
			}
		case summary.HeapCopy, summary.HeapLoad, summary.HeapStore:
			values := make(map[instance.ID]struct{})
			for _, ss := range LocationSlots(rule.Src(), call, in) {
				for id := range in.Pts(ss) {
					values[id] = struct{}{}
				}
			}
			for _, ds := range dstSlots {
				for id := range values {
					out.Gen(ds, id)
				}
			}
		}
	}

	// A summary that never mentions Ret leaves no rule binding the result
	// slot; the result stays killed-empty, which is sound (no known
	// return value) rather than synthesizing an unknown one — a
	// published summary, unlike the fallback tier, is assumed complete
	// for everything it tracks.
	return out
}

// RootSlot binds a HeapBase root to the caller's slot at this call site —
// This -> receiver, Arg(i) -> args[i], Global(fqn) -> static slot,
// Ret -> the call's result.
func RootSlot(root heap.Root, call *ir.Call) (slot.Slot, bool) {
	switch root.Kind {
	case heap.RootThis:
		if call.Receiver == "" {
			return slot.Slot{}, false
		}
		return slot.Var(string(call.Receiver)), true
	case heap.RootArg:
		if root.Index < 0 || root.Index >= len(call.Args) {
			return slot.Slot{}, false
		}
		return slot.Var(string(call.Args[root.Index])), true
	case heap.RootGlobal:
		return slot.StaticField(root.FQN), true
	case heap.RootRet:
		if !call.HasResult {
			return slot.Slot{}, false
		}
		return slot.Var(string(call.Result)), true
	default:
		return slot.Slot{}, false
	}
}

// stepAccess advances a set of container instances one access-list
// element, returning the instances found at that access on each
// container, per facts' current points-to table.
func stepAccess(ids map[instance.ID]struct{}, acc heap.Access, facts rfa.FactSet) map[instance.ID]struct{} {
	out := make(map[instance.ID]struct{})
	for id := range ids {
		for v := range facts.Pts(accessSlot(id, acc)) {
			out[v] = struct{}{}
		}
	}
	return out
}

// accessSlot is the slot one access-list element denotes on a concrete
// base instance. Map accesses use the key-less over-approximation (the
// SuMapAccess key-less behavior) since a HeapBase's MapAcc carries only
// a textual key rendering, not a resolved key instance.
func accessSlot(base instance.ID, acc heap.Access) slot.Slot {
	switch acc.Kind {
	case heap.AccessField:
		return slot.Field(base, acc.FieldName)
	case heap.AccessArray:
		return slot.Array(base)
	default: // heap.AccessMap
		return slot.Map(base, 0, false)
	}
}

// LocationSlots resolves a HeapBase to the concrete slot(s) it currently
// denotes: the root slot directly for a bare root, or one Field/Array/Map
// slot per instance reachable at the access list's prefix for a suffixed
// path. Multiple caller-side receiver/argument instances (or aliasing
// partway down the path) can yield more than one location, all of which
// the rule's effect applies to.
func LocationSlots(base heap.Base, call *ir.Call, facts rfa.FactSet) []slot.Slot {
	root, ok := RootSlot(base.Root, call)
	if !ok {
		return nil
	}
	if len(base.Access) == 0 {
		return []slot.Slot{root}
	}
	containers := facts.Pts(root)
	for _, acc := range base.Access[:len(base.Access)-1] {
		containers = stepAccess(containers, acc, facts)
	}
	last := base.Access[len(base.Access)-1]
	slots := make([]slot.Slot, 0, len(containers))
	for id := range containers {
		slots = append(slots, accessSlot(id, last))
	}
	return slots
}

// unknownFallback synthesizes fresh unknown=true instances for the call's
// result and for every field/array/map slot transitively reachable from
// the receiver and arguments, then removes the facts it clobbers. Reachable
// slots are discovered by scanning in for Field/Array/Map slots whose base
// instance is in the seed closure — a closed computation over the current
// fact set, independent of the heap map (which internal/workunit builds
// only after the fixpoint has converged).
func (r *Resolver) unknownFallback(call *ir.Call, in, out rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error) {
	seeds := make(map[instance.ID]struct{})
	if call.Receiver != "" {
		for id := range in.Pts(slot.Var(string(call.Receiver))) {
			seeds[id] = struct{}{}
		}
	}
	for _, arg := range call.Args {
		for id := range in.Pts(slot.Var(string(arg))) {
			seeds[id] = struct{}{}
		}
	}

	reachable := closeOverHeap(in, seeds)

	for s := range in {
		if !slotRootedIn(s, reachable) {
			continue
		}
		out.Kill(s)
		unknownID := pool.Intern(instance.Instance{
			Type:    instance.Type{Name: "?"},
			DefSite: instance.DefSite{Method: method, Index: locIndex, Label: s.String()},
			Unknown: true,
		})
		out.Gen(s, unknownID)
	}

	if call.HasResult {
		retID := pool.Intern(instance.Instance{
			Type:    instance.Type{Name: "?"},
			DefSite: instance.DefSite{Method: method, Index: locIndex, Label: "ret"},
			Unknown: true,
		})
		out.Gen(slot.Var(string(call.Result)), retID)
	}

	return out, nil
}

// closeOverHeap computes the transitive closure of instances reachable
// from seeds through Field/Array/Map slots already present in facts.
func closeOverHeap(facts rfa.FactSet, seeds map[instance.ID]struct{}) map[instance.ID]struct{} {
	reachable := make(map[instance.ID]struct{}, len(seeds))
	var worklist []instance.ID
	for id := range seeds {
		reachable[id] = struct{}{}
		worklist = append(worklist, id)
	}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for s, ids := range facts {
			if s.Kind() == slot.KindVar || s.Kind() == slot.KindStaticField {
				continue
			}
			if s.Base() != id {
				continue
			}
			for next := range ids {
				if _, ok := reachable[next]; !ok {
					reachable[next] = struct{}{}
					worklist = append(worklist, next)
				}
			}
		}
	}
	return reachable
}

func slotRootedIn(s slot.Slot, reachable map[instance.ID]struct{}) bool {
	switch s.Kind() {
	case slot.KindField, slot.KindArray, slot.KindMap:
		_, ok := reachable[s.Base()]
		return ok
	default:
		return false
	}
}
