package rfa

import (
	"context"

	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/slot"
)

// CallResolver resolves a call statement's effect on the incoming fact
// set during the fixpoint. Implemented by internal/callresolver; kept as
// a narrow interface here so this package never imports the summary
// manager or external collaborators.
type CallResolver interface {
	Resolve(call *ir.Call, in FactSet, pool *instance.Pool, method string, locIndex int) (FactSet, error)
}

// Result is the converged (or timed-out) output of RunFixpoint: the
// In/Out fact sets at every ICFG node, indexed by node index.
type Result struct {
	In         []FactSet
	Out        []FactSet
	Incomplete bool // true if the timeout fired before the fixpoint stabilized
}

// RunFixpoint computes the reaching-facts fixpoint over cfg, seeded with
// entryFacts at the entry node, delegating call-statement transfers to
// resolver. Bounded by ctx's deadline (the default 60s timeout is applied
// by the caller via context.WithTimeout); on timeout the last stable
// state is returned with Incomplete=true rather than an error — analysis
// timeouts are non-fatal.
func RunFixpoint(ctx context.Context, cfg *ICFG, entryFacts FactSet, pool *instance.Pool, method string, resolver CallResolver) (*Result, error) {
	n := len(cfg.Nodes)
	res := &Result{
		In:  make([]FactSet, n),
		Out: make([]FactSet, n),
	}
	for i := range res.In {
		res.In[i] = NewFactSet()
		res.Out[i] = NewFactSet()
	}
	res.In[cfg.EntryIndex] = entryFacts.Clone()

	queue := make([]int, 0, n)
	queued := make([]bool, n)
	visited := make([]bool, n)
	enqueue := func(idx int) {
		if !queued[idx] {
			queued[idx] = true
			queue = append(queue, idx)
		}
	}
	enqueue(cfg.EntryIndex)

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			res.Incomplete = true
			return res, nil
		default:
		}

		idx := queue[0]
		queue = queue[1:]
		queued[idx] = false

		node := cfg.Nodes[idx]
		in := NewFactSet()
		if idx == cfg.EntryIndex {
			in = res.In[cfg.EntryIndex]
		} else {
			for _, p := range node.Preds {
				in.Union(res.Out[p])
			}
		}
		res.In[idx] = in

		out, err := transfer(node, in, pool, method, resolver)
		if err != nil {
			return nil, err
		}

		// A node's first visit always propagates to its successors, even
		// when its Out set is still empty, so every reachable node is
		// transferred at least once.
		if !visited[idx] || !out.Equal(res.Out[idx]) {
			visited[idx] = true
			res.Out[idx] = out
			for _, s := range node.Succs {
				enqueue(s)
			}
		}
	}

	return res, nil
}

// transfer applies one node's statement-kind transfer function.
func transfer(node Node, in FactSet, pool *instance.Pool, method string, resolver CallResolver) (FactSet, error) {
	switch node.Kind {
	case NodeEntry, NodeExit:
		return in.Clone(), nil
	case NodeCall:
		return resolver.Resolve(node.Loc.Stmt.Call, in, pool, method, node.Loc.Index)
	default:
		return transferNormal(node.Loc, in, pool, method), nil
	}
}

func transferNormal(loc ir.Location, in FactSet, pool *instance.Pool, method string) FactSet {
	out := in.Clone()
	s := loc.Stmt
	switch s.Kind {
	case ir.StmtAssign:
		transferAssign(s, loc.Index, in, out, pool, method)
	default:
		// If, Goto, Return, Throw: identity on the fact set;
		// control flow is handled entirely by the ICFG's edges.
	}
	return out
}

// transferAssign implements the alloc/copy/field-load/field-store/
// array-load/array-store/cast transfer functions, dispatching on
// the shape of the LHS and RHS expressions the lowering produced. RHS
// lookups always read from in (the pre-statement state), so a
// self-referential assignment like `x = x.f` sees x's points-to set
// before the LHS kill below, not after.
func transferAssign(s ir.Stmt, locIndex int, in, out FactSet, pool *instance.Pool, method string) {
	switch s.LHS.Kind {
	case ir.ExprName:
		lhsSlot := slot.Var(string(s.LHS.Name))
		generated := genRHS(s.RHS, locIndex, in, pool, method)
		out.Kill(lhsSlot)
		for id := range generated {
			out.Gen(lhsSlot, id)
		}

	case ir.ExprAccess:
		// Field store: y.f = x. Weak update — siblings already in
		// Field(i, f) for other i are never killed.
		for baseID := range in.Pts(slot.Var(string(s.LHS.Base))) {
			fieldSlot := slot.Field(baseID, s.LHS.Field)
			for rhsID := range in.Pts(slot.Var(string(s.RHS.Name))) {
				out.Gen(fieldSlot, rhsID)
			}
		}

	case ir.ExprIndex:
		// Array store: y[*] = x. Same weak-update discipline.
		for baseID := range in.Pts(slot.Var(string(s.LHS.Base))) {
			arraySlot := slot.Array(baseID)
			for rhsID := range in.Pts(slot.Var(string(s.RHS.Name))) {
				out.Gen(arraySlot, rhsID)
			}
		}

	case ir.ExprStaticAccess:
		// Static field store: ClassName.f = x. Weak update, same as a
		// field store — a static slot has no base instance to distinguish
		// it from any other write to the same fqn, but nothing else writes
		// it either, so there is nothing to preserve beyond the existing
		// points-to set.
		staticSlot := slot.StaticField(s.LHS.FQN)
		for rhsID := range in.Pts(slot.Var(string(s.RHS.Name))) {
			out.Gen(staticSlot, rhsID)
		}
	}
}

// genRHS computes the instance set a Var(lhs) assignment's RHS produces,
// reading exclusively from in (the pre-statement fact set).
func genRHS(rhs ir.Expr, locIndex int, in FactSet, pool *instance.Pool, method string) map[instance.ID]struct{} {
	generated := make(map[instance.ID]struct{})
	switch rhs.Kind {
	case ir.ExprNew:
		id := pool.Intern(instance.Instance{
			Type:    instance.Type{Name: rhs.Type},
			DefSite: instance.DefSite{Method: method, Index: locIndex},
		})
		generated[id] = struct{}{}

	case ir.ExprName:
		for id := range in.Pts(slot.Var(string(rhs.Name))) {
			generated[id] = struct{}{}
		}

	case ir.ExprCast:
		// Cast is treated as a copy; the engine trusts source types.
		for id := range in.Pts(slot.Var(string(rhs.Operand))) {
			generated[id] = struct{}{}
		}

	case ir.ExprAccess:
		// Field load: x = y.f.
		for baseID := range in.Pts(slot.Var(string(rhs.Base))) {
			for id := range in.Pts(slot.Field(baseID, rhs.Field)) {
				generated[id] = struct{}{}
			}
		}

	case ir.ExprIndex:
		// Array load: x = y[*].
		for baseID := range in.Pts(slot.Var(string(rhs.Base))) {
			for id := range in.Pts(slot.Array(baseID)) {
				generated[id] = struct{}{}
			}
		}

	case ir.ExprStaticAccess:
		// Static field load: x = ClassName.f.
		for id := range in.Pts(slot.StaticField(rhs.FQN)) {
			generated[id] = struct{}{}
		}

	default:
		// Binary, unary, literal, instanceof: produce non-reference values
		// outside this engine's instance domain; lhsSlot is left empty.
	}
	return generated
}
