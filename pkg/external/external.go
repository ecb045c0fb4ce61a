// Package external defines the narrow interfaces the core engine consumes
// from its consumer-facing collaborators: class/method lookup, the
// standard-library model-call catalog, and the published summary store.
// These collaborators — real class loading, symbol resolution, and the
// hand-written model-call registry — live outside this module; the core
// only ever depends on the interfaces here, the same loader-interface
// boundary pattern used to separate a language core from pluggable module
// resolution.
package external

import (
	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/rfa"
	"github.com/jawa-analysis/heapsum/internal/summary"
)

// JawaMethod is a resolved, lowered method as the engine needs to see it:
// its signature, ordered formal parameters, optional receiver, declaring
// class, and already-lowered IR body.
type JawaMethod interface {
	Signature() string
	Params() []ast.Param
	ThisParam() (ast.Param, bool) // ok=false for a static method
	DeclaringClass() string
	Body() ir.Body
}

// Global is the read-only class/method lookup surface. The core never
// mutates anything reachable through Global; resolution failures are
// reported via the bool, not an error, since "not found" is an expected,
// non-fatal outcome the call resolver's unknown-object fallback handles.
type Global interface {
	GetClassOrResolve(typeName string) (ClassInfo, bool)
	GetMethodOrResolve(signature string) (JawaMethod, bool)
	ResolvePackage(name string) (PackageInfo, bool)

	// ResolveOverride picks the concrete override of signature reachable
	// through receiverType's class, for the call resolver's virtual/
	// interface dispatch step: computing the callee set via virtual
	// dispatch over the current points-to of the receiver. Static,
	// direct, and super calls never need this: GetMethodOrResolve already
	// names the exact callee for those dispatch kinds.
	ResolveOverride(signature string, receiverType string) (JawaMethod, bool)
}

// ClassInfo is the minimal class metadata the call resolver's virtual
// dispatch step needs: its name, superclass (empty for java.lang.Object
// or an interface with no super), and the interfaces it implements.
type ClassInfo struct {
	Name       string
	Super      string
	Interfaces []string
	IsAbstract bool
}

// PackageInfo is the minimal package metadata the core ever asks for.
type PackageInfo struct {
	Name string
}

// ModelCallHandler recognizes and applies hand-written transfer functions
// for standard-library calls the core does not analyze interprocedurally.
// DoModelCall receives the incoming fact set and the call's
// resolved signature; it returns the outgoing fact set directly, the same
// shape a summary-apply step would produce.
type ModelCallHandler interface {
	IsModelCall(signature string) bool
	DoModelCall(call *ir.Call, in rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error)
}

// SummaryManager is the published-summary store the call resolver queries
// and the rule-extraction walk publishes into. GetHeapSummary and
// GetPTSummary are independent lookups because a method may have a heap
// summary computed by HS-WU before (or without) a PT summary from PT-WU.
// internal/summary.Manager satisfies this interface structurally, without
// importing this package, keeping the dependency graph acyclic: this
// package depends on internal/summary for the Summary type, not the
// reverse.
type SummaryManager interface {
	GetHeapSummary(signature string) (*summary.Summary, bool)
	GetPTSummary(signature string) (*summary.Summary, bool)
	Publish(signature string, kind summary.Kind, s *summary.Summary)
}
