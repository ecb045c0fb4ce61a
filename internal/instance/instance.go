// Package instance implements the allocation-site-keyed abstract instance
// domain: (type, defSite, unknown?) triples, interned to small integer IDs
// that fact sets and points-to sets key their instance sets by.
package instance

import "fmt"

// Type is the minimal type identity the engine needs from a resolved type:
// a stable name to compare and print. The real type system lives in the
// Global collaborator (pkg/external); this is intentionally thin.
type Type struct {
	Name string
}

// DefSite identifies where an instance was allocated or synthesized: a
// method signature plus a location index (or, for entry parameters, a
// synthetic marker carried in Label).
type DefSite struct {
	Method string
	Index  int
	Label  string
}

// Instance is an allocation-site-keyed abstract value. Two instances are
// equal iff (Type, DefSite, Unknown) match.
type Instance struct {
	Type    Type
	DefSite DefSite
	Unknown bool
}

func (i Instance) String() string {
	u := ""
	if i.Unknown {
		u = "?"
	}
	if i.DefSite.Label != "" {
		return fmt.Sprintf("%s@%s%s", i.Type.Name, i.DefSite.Label, u)
	}
	return fmt.Sprintf("%s@%s:%d%s", i.Type.Name, i.DefSite.Method, i.DefSite.Index, u)
}

// ID is a small dense integer assigned to an Instance by a Pool, used as
// the element of fact sets and points-to sets (map[ID]struct{} sets).
type ID int

// Pool interns Instances to IDs within the scope of a single work unit.
// The pool is method-local: only summaries cross method boundaries.
type Pool struct {
	byValue map[Instance]ID
	byID    []Instance
}

// NewPool returns an empty interning pool.
func NewPool() *Pool {
	return &Pool{byValue: make(map[Instance]ID)}
}

// Intern returns the ID for inst, assigning a fresh one on first sight.
func (p *Pool) Intern(inst Instance) ID {
	if id, ok := p.byValue[inst]; ok {
		return id
	}
	id := ID(len(p.byID))
	p.byID = append(p.byID, inst)
	p.byValue[inst] = id
	return id
}

// Lookup returns the Instance for id. Panics if id was never interned by
// this pool — that would indicate a cross-pool ID leak, an invariant
// violation rather than recoverable user error.
func (p *Pool) Lookup(id ID) Instance {
	return p.byID[id]
}

// Len returns the number of distinct instances interned so far.
func (p *Pool) Len() int { return len(p.byID) }
