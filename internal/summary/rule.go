// Package summary implements the SummaryRule variants and the per-method
// Summary a work unit publishes once its analysis converges.
// Per the "tagged variants over inheritance" design note, SummaryRule is a
// closed sum type: a kind discriminator plus an exhaustive switch at each
// use site, matching internal/ir, internal/slot, and internal/heap.
package summary

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/context"
	"github.com/jawa-analysis/heapsum/internal/heap"
	"github.com/jawa-analysis/heapsum/internal/slot"
)

// Kind discriminates which work unit a rule (or a whole summary) came
// from: HS-WU's heap-transfer rules, or PT-WU's point-resolution rules.
type Kind int

const (
	KindHeap Kind = iota
	KindPT
)

func (k Kind) String() string {
	if k == KindPT {
		return "pt"
	}
	return "heap"
}

// HeapOp discriminates a HeapSummaryRule's operation.
type HeapOp int

const (
	HeapLoad HeapOp = iota
	HeapStore
	HeapClear
	HeapCopy
)

func (o HeapOp) String() string {
	switch o {
	case HeapLoad:
		return "load"
	case HeapStore:
		return "store"
	case HeapClear:
		return "clear"
	case HeapCopy:
		return "copy"
	default:
		return "<invalid-heap-op>"
	}
}

// RuleKind discriminates the SummaryRule variants.
type RuleKind int

const (
	RuleHeap RuleKind = iota
	RulePT
)

// Rule is one entry of a Summary's ordered rule list: either a
// HeapSummaryRule (ops over HeapBases: load/store/clear/copy, the output
// of HS-WU) or a PTSummaryRule (base, point, trackHeap — the output of
// PT-WU).
type Rule struct {
	kind RuleKind

	// RuleHeap
	heapOp HeapOp
	dst    heap.Base
	src    heap.Base // zero value for HeapClear, which has no source

	// RulePT
	ptBase    heap.Base
	point     context.Context
	pointSlot slot.Slot
	trackHeap bool
}

// HeapSummaryRule constructs a load/store/copy rule between two heap
// bases. HeapClear rules should use the HeapClearRule constructor, which
// leaves src unset since a clear has none.
func HeapSummaryRule(op HeapOp, dst, src heap.Base) Rule {
	return Rule{kind: RuleHeap, heapOp: op, dst: dst, src: src}
}

// HeapClearRule constructs a clear rule: dst's heap contents are
// invalidated with no corresponding source, e.g. for an unknown-object
// fallback's "may have clobbered anything reachable" effect.
func HeapClearRule(dst heap.Base) Rule {
	return Rule{kind: RuleHeap, heapOp: HeapClear, dst: dst}
}

// PTSummaryRule constructs a PT-WU rule: "to resolve point in the caller,
// substitute base evaluated in the caller context".
func PTSummaryRule(base heap.Base, point context.Context, s slot.Slot, trackHeap bool) Rule {
	return Rule{kind: RulePT, ptBase: base, point: point, pointSlot: s, trackHeap: trackHeap}
}

func (r Rule) Kind() RuleKind { return r.kind }

// HeapOp, Dst, Src are HeapSummaryRule accessors; callers must check
// Kind() == RuleHeap before reading them.
func (r Rule) HeapOp() HeapOp { return r.heapOp }
func (r Rule) Dst() heap.Base { return r.dst }
func (r Rule) Src() heap.Base { return r.src }

// PTBase, Point, PointSlot, TrackHeap are PTSummaryRule accessors;
// callers must check Kind() == RulePT before reading them.
func (r Rule) PTBase() heap.Base      { return r.ptBase }
func (r Rule) Point() context.Context { return r.point }
func (r Rule) PointSlot() slot.Slot   { return r.pointSlot }
func (r Rule) TrackHeap() bool        { return r.trackHeap }

func (r Rule) String() string {
	switch r.kind {
	case RuleHeap:
		if r.heapOp == HeapClear {
			return fmt.Sprintf("clear %s", r.dst)
		}
		return fmt.Sprintf("%s %s <- %s", r.heapOp, r.dst, r.src)
	case RulePT:
		return fmt.Sprintf("pt(%s @ %s) <- %s [trackHeap=%v]", r.pointSlot, r.point, r.ptBase, r.trackHeap)
	default:
		return "<invalid-rule>"
	}
}

// Summary is the immutable, published description of one method's
// points-to/heap effect: its signature plus an ordered rule list. The
// ordering reflects the rule-extraction walk and is preserved so
// downstream replay is deterministic.
type Summary struct {
	MethodSignature string
	Rules           []Rule
	// Incomplete marks a summary produced from a fixpoint that hit its
	// timeout: still conservative, never unsound, but callers may want to
	// note it for diagnostics.
	Incomplete bool
}
