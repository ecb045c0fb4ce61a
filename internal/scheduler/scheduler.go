// Package scheduler implements bottom-up work-unit dispatch: a Tarjan SCC
// decomposition of the static call graph orders strongly connected
// components leaves-first, and an errgroup-bounded fan-out runs every work
// unit within one SCC concurrently, collecting rather than aborting on a
// single failing method — a single method's analysis failure must never
// abort the run. The fan-out itself is the familiar goroutine-per-task
// shape used to back `spawn`/`await`-style concurrency builtins with a
// single errgroup.Group; this package adds the
// SCC ordering layer bottom-up interprocedural dispatch requires on top,
// since spawn/await never needed one.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jawa-analysis/heapsum/internal/config"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/internal/workunit"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

// CallGraph is the static call graph the scheduler orders: an edge from a
// method's signature to each signature it may call, direct or virtual,
// over-approximated (an edge that turns out never to execute only costs
// extra SCC members, never unsoundness). Every method the caller wants
// scheduled must appear as a key, even one with no outgoing edges — a leaf
// method reachable only as someone else's callee is discovered during
// traversal, but one that is nobody's callee and has no edges of its own
// is only ever visited via its own key.
type CallGraph map[string][]string

// Outcome is one method's scheduled analysis result, collected regardless
// of whether earlier methods in the run failed. Dispatch is the run's
// correlation id for this one dispatched work unit, distinct per call to
// Run and per scheduled method within it, so a run's per-method outcomes
// can be told apart from a retry of the same method in a later run. Only
// the Outcome carries it; the work unit itself never sees it.
type Outcome struct {
	Signature string
	Dispatch  uuid.UUID
	Heap      *summary.Summary
	Err       error
}

// Run dispatches HS-WU over every method named by graph's keys, bottom-up
// by SCC: callees are always fully analyzed (summaries published into
// manager) before their callers are scheduled, so a caller's call resolver
// finds a published summary instead of falling back to the unknown-object
// tier whenever a direct, non-recursive callee exists. Methods within one
// SCC (including a lone self-recursive method) are scheduled together,
// since no ordering between them can avoid at least one seeing the others'
// pre-fixpoint state; the call resolver's unknown-object fallback and the
// summary manager's compute-once dedup make that sound rather than merely
// expedient.
func Run(ctx context.Context, graph CallGraph, methods map[string]external.JawaMethod, global external.Global, handler external.ModelCallHandler, manager external.SummaryManager, cfg *config.EngineConfig) []Outcome {
	order := tarjanSCCs(graph)
	outcomes := make([]Outcome, 0, len(methods))

	for _, scc := range order {
		group, gctx := errgroup.WithContext(ctx)
		if cfg != nil && cfg.Workers > 0 {
			group.SetLimit(cfg.Workers)
		}

		results := make([]Outcome, len(scc))
		for i, sig := range scc {
			i, sig := i, sig
			group.Go(func() error {
				select {
				case <-gctx.Done():
				default:
				}
				dispatch := uuid.New()
				method, ok := methods[sig]
				if !ok {
					results[i] = Outcome{Signature: sig, Dispatch: dispatch, Err: fmt.Errorf("scheduler: no method registered for %s", sig)}
					return nil // collected, not propagated: one missing method never aborts the run.
				}
				s, err := workunit.RunHeap(workunit.Request{
					Method:  method,
					Global:  global,
					Handler: handler,
					Manager: manager,
					Config:  cfg,
				})
				results[i] = Outcome{Signature: sig, Dispatch: dispatch, Heap: s, Err: err}
				return nil
			})
		}
		// Group.Wait's error is always nil by construction above: every
		// goroutine reports its failure through results instead of a
		// returned error, so one method's failure never cancels its SCC
		// siblings via errgroup's context.
		_ = group.Wait()
		outcomes = append(outcomes, results...)
	}

	return outcomes
}

// tarjanSCCs computes graph's strongly connected components via Tarjan's
// algorithm and returns them in reverse topological (callee-before-caller,
// i.e. bottom-up) order: the order bottom-up interprocedural analyses
// require so a method's summary exists before its caller's fixpoint needs
// it.
func tarjanSCCs(graph CallGraph) [][]string {
	t := &tarjan{
		graph:   graph,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes) // deterministic visitation order across runs.

	for _, n := range nodes {
		if _, seen := t.index[n]; !seen {
			t.strongConnect(n)
		}
	}

	// Tarjan emits SCCs in reverse topological order relative to edge
	// direction (a component is only finalized once every component it
	// points to has already been popped); since graph's edges point
	// caller -> callee, that emission order is already callee-before-
	// caller, i.e. the bottom-up order this scheduler wants.
	return t.sccs
}

type tarjan struct {
	graph   CallGraph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	callees := append([]string(nil), t.graph[v]...)
	sort.Strings(callees)
	for _, w := range callees {
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var scc []string
	for {
		n := len(t.stack) - 1
		w := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}
