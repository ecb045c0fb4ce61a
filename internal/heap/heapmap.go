package heap

import "github.com/jawa-analysis/heapsum/internal/instance"

// Map records, for each abstract instance observed during a work unit's
// analysis, a canonical symbolic path through which a caller can reach it.
// The map is a may-alias hint, not a canonicalization: an instance maps
// to at most one symbolic path, first-writer wins. Alias
// evaluation must consult the points-to table, never this map, to stay
// sound in the presence of cyclic object graphs (e.g. x.next = x).
type Map struct {
	paths map[instance.ID]Base
}

// NewMap returns an empty HeapMap.
func NewMap() *Map {
	return &Map{paths: make(map[instance.ID]Base)}
}

// Record inserts inst -> base if inst has no recorded path yet. Returns
// true if the insertion happened (first sighting), false if an existing
// entry was preserved (best-effort first match).
func (m *Map) Record(inst instance.ID, base Base) bool {
	if _, ok := m.paths[inst]; ok {
		return false
	}
	m.paths[inst] = base
	return true
}

// Lookup returns the recorded path for inst, if any.
func (m *Map) Lookup(inst instance.ID) (Base, bool) {
	b, ok := m.paths[inst]
	return b, ok
}

// Kill removes every recorded path for the instances in insts, modeling
// an LHS overwrite that makes those instances unreachable from the
// previous slot. Instances not present are no-ops.
func (m *Map) Kill(insts []instance.ID) {
	for _, id := range insts {
		delete(m.paths, id)
	}
}

// Reachable reports whether inst currently has a recorded symbolic path —
// used to check the heap-map closure invariant (a local-only allocation
// must never leak into a published summary).
func (m *Map) Reachable(inst instance.ID) bool {
	_, ok := m.paths[inst]
	return ok
}

// Len returns the number of instances currently tracked.
func (m *Map) Len() int { return len(m.paths) }

// Each calls fn for every tracked (instance, base) pair. Iteration order
// is unspecified; callers that need determinism must sort by instance ID.
func (m *Map) Each(fn func(instance.ID, Base)) {
	for id, b := range m.paths {
		fn(id, b)
	}
}
