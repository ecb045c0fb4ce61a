// Package rfa implements the Reaching-Facts Analysis: the intraprocedural
// control-flow graph built from a lowered method body, and the worklist
// fixpoint that propagates points-to facts across it.
package rfa

import (
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/slot"
)

// Fact is one (Slot, Instance) pair — the dataflow lattice's atoms.
type Fact struct {
	Slot     slot.Slot
	Instance instance.ID
}

// FactSet is the dataflow value at one program point: 2^Fact, represented
// as a slot -> instance-set map for efficient per-slot points-to lookups.
// The zero value is a valid empty set.
type FactSet map[slot.Slot]map[instance.ID]struct{}

// NewFactSet returns an empty FactSet.
func NewFactSet() FactSet { return make(FactSet) }

// Pts returns the points-to set recorded for s, or nil if s has no facts.
func (f FactSet) Pts(s slot.Slot) map[instance.ID]struct{} { return f[s] }

// Gen adds the fact (s, id) to f.
func (f FactSet) Gen(s slot.Slot, id instance.ID) {
	set, ok := f[s]
	if !ok {
		set = make(map[instance.ID]struct{}, 1)
		f[s] = set
	}
	set[id] = struct{}{}
}

// Kill removes every fact for s.
func (f FactSet) Kill(s slot.Slot) { delete(f, s) }

// Clone returns a deep copy of f, so a transfer function can mutate its
// own working set without aliasing the predecessor's.
func (f FactSet) Clone() FactSet {
	out := make(FactSet, len(f))
	for s, ids := range f {
		set := make(map[instance.ID]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		out[s] = set
	}
	return out
}

// Union merges other into f in place (the dataflow join).
func (f FactSet) Union(other FactSet) {
	for s, ids := range other {
		set, ok := f[s]
		if !ok {
			set = make(map[instance.ID]struct{}, len(ids))
			f[s] = set
		}
		for id := range ids {
			set[id] = struct{}{}
		}
	}
}

// Equal reports whether f and other hold exactly the same facts, used by
// the fixpoint loop to detect when a node's Out set has stabilized.
func (f FactSet) Equal(other FactSet) bool {
	if len(f) != len(other) {
		return false
	}
	for s, ids := range f {
		oids, ok := other[s]
		if !ok || len(ids) != len(oids) {
			return false
		}
		for id := range ids {
			if _, ok := oids[id]; !ok {
				return false
			}
		}
	}
	return true
}
