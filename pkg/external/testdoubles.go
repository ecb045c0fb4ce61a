package external

import (
	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/rfa"
)

// Method is the minimal concrete JawaMethod this module needs for its own
// tests and the cmd/heapsum demonstration driver — a real implementation
// resolves these from loaded class files.
type Method struct {
	Sig         string
	ParamList   []ast.Param
	This        *ast.Param
	Class       string
	LoweredBody ir.Body
}

func (m *Method) Signature() string      { return m.Sig }
func (m *Method) Params() []ast.Param    { return m.ParamList }
func (m *Method) DeclaringClass() string { return m.Class }
func (m *Method) Body() ir.Body          { return m.LoweredBody }

func (m *Method) ThisParam() (ast.Param, bool) {
	if m.This == nil {
		return ast.Param{}, false
	}
	return *m.This, true
}

// MapGlobal is a map-backed Global, sufficient for fixture-driven tests
// and the cmd/heapsum demonstration driver — real class loading/symbol
// resolution stay external to this module.
type MapGlobal struct {
	Classes  map[string]ClassInfo
	Methods  map[string]JawaMethod
	Packages map[string]PackageInfo

	// Overrides maps (signature, receiverType) to the override JawaMethod,
	// populated by test fixtures that want to exercise virtual dispatch
	// across more than one concrete subclass.
	Overrides map[overrideKey]JawaMethod
}

type overrideKey struct {
	signature    string
	receiverType string
}

// NewMapGlobal returns an empty MapGlobal ready for Register* calls.
func NewMapGlobal() *MapGlobal {
	return &MapGlobal{
		Classes:   make(map[string]ClassInfo),
		Methods:   make(map[string]JawaMethod),
		Packages:  make(map[string]PackageInfo),
		Overrides: make(map[overrideKey]JawaMethod),
	}
}

func (g *MapGlobal) RegisterClass(c ClassInfo)      { g.Classes[c.Name] = c }
func (g *MapGlobal) RegisterMethod(m JawaMethod)    { g.Methods[m.Signature()] = m }
func (g *MapGlobal) RegisterPackage(p PackageInfo)  { g.Packages[p.Name] = p }
func (g *MapGlobal) RegisterOverride(signature, receiverType string, m JawaMethod) {
	g.Overrides[overrideKey{signature, receiverType}] = m
}

func (g *MapGlobal) GetClassOrResolve(typeName string) (ClassInfo, bool) {
	c, ok := g.Classes[typeName]
	return c, ok
}

func (g *MapGlobal) GetMethodOrResolve(signature string) (JawaMethod, bool) {
	m, ok := g.Methods[signature]
	return m, ok
}

func (g *MapGlobal) ResolvePackage(name string) (PackageInfo, bool) {
	p, ok := g.Packages[name]
	return p, ok
}

func (g *MapGlobal) ResolveOverride(signature, receiverType string) (JawaMethod, bool) {
	if m, ok := g.Overrides[overrideKey{signature, receiverType}]; ok {
		return m, true
	}
	return g.GetMethodOrResolve(signature)
}

// TableModelCallHandler is a table-driven ModelCallHandler keyed by
// signature, sufficient for this module's own tests and the cmd/heapsum
// demonstration driver. A real handler hand-codes one transfer
// function per standard-library method; test fixtures only need a
// handful registered per scenario.
type TableModelCallHandler struct {
	Handlers map[string]func(call *ir.Call, in rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error)
}

// NewTableModelCallHandler returns an empty handler table.
func NewTableModelCallHandler() *TableModelCallHandler {
	return &TableModelCallHandler{
		Handlers: make(map[string]func(*ir.Call, rfa.FactSet, *instance.Pool, string, int) (rfa.FactSet, error)),
	}
}

func (h *TableModelCallHandler) IsModelCall(signature string) bool {
	_, ok := h.Handlers[signature]
	return ok
}

func (h *TableModelCallHandler) DoModelCall(call *ir.Call, in rfa.FactSet, pool *instance.Pool, method string, locIndex int) (rfa.FactSet, error) {
	fn, ok := h.Handlers[call.Signature]
	if !ok {
		return in.Clone(), nil
	}
	return fn(call, in, pool, method, locIndex)
}
