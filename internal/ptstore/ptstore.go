// Package ptstore implements the PTStore: a shared, per-analysis
// container holding a typed property map and
// the resolved PTAResult that PT-WU accumulates as it propagates queries
// across call boundaries. The shape follows the familiar "shared mutable
// state behind a small mutex" idiom, scaled up here
// to a striped lock table since concurrently-running PT-WU work units
// hammer many distinct keys rather than one shared buffer.
package ptstore

import (
	"hash/fnv"
	"sync"

	"github.com/jawa-analysis/heapsum/internal/context"
	"github.com/jawa-analysis/heapsum/internal/instance"
	"github.com/jawa-analysis/heapsum/internal/slot"
)

// Key identifies one queued or resolved PT query: a (context, slot) pair,
// matching the `pointsToResolve: Context -> set of (Slot, trackHeap?)`
// map PT-WU accumulates.
type Key struct {
	Context context.Context
	Slot    slot.Slot
}

func (k Key) hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(k.Context.String()))
	h.Write([]byte{0})
	h.Write([]byte(k.Slot.String()))
	return h.Sum32()
}

// defaultStripeCount is sized generously relative to typical worker
// counts (the scheduler's errgroup-bounded fan-out) so contention across
// concurrently-analyzed methods stays low without per-key allocation.
const defaultStripeCount = 64

// Store is the shared PTStore. Single-writer-per-key is sufficient —
// readers may observe partial updates between keys: each key's resolved
// set lives behind its own stripe's mutex, so writers to different keys
// never contend, and within one key writes serialize.
type Store struct {
	stripes []*stripe
	props   sync.Map // typed key -> value property map
}

type stripe struct {
	mu       sync.Mutex
	resolved map[Key]map[instance.ID]struct{}
}

// New returns an empty Store with the default stripe count.
func New() *Store { return NewSized(defaultStripeCount) }

// NewSized returns an empty Store with an explicit stripe count, for
// tests that want to exercise stripe collisions deterministically.
func NewSized(stripeCount int) *Store {
	if stripeCount < 1 {
		stripeCount = 1
	}
	s := &Store{stripes: make([]*stripe, stripeCount)}
	for i := range s.stripes {
		s.stripes[i] = &stripe{resolved: make(map[Key]map[instance.ID]struct{})}
	}
	return s
}

func (s *Store) stripeFor(k Key) *stripe {
	return s.stripes[k.hash()%uint32(len(s.stripes))]
}

// RecordResolved adds id to k's resolved instance set — the "otherwise
// record the instance directly in the shared PTStore.resolved" branch
// taken when a queried instance has no recorded heap-map path.
func (s *Store) RecordResolved(k Key, id instance.ID) {
	st := s.stripeFor(k)
	st.mu.Lock()
	defer st.mu.Unlock()
	set, ok := st.resolved[k]
	if !ok {
		set = make(map[instance.ID]struct{})
		st.resolved[k] = set
	}
	set[id] = struct{}{}
}

// Resolved returns a snapshot of k's resolved instance set.
func (s *Store) Resolved(k Key) map[instance.ID]struct{} {
	st := s.stripeFor(k)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[instance.ID]struct{}, len(st.resolved[k]))
	for id := range st.resolved[k] {
		out[id] = struct{}{}
	}
	return out
}

// SetProperty and GetProperty implement the typed property map. Property
// keys are expected to be small comparable values (typically a private
// struct type per property, following the standard context.Value idiom)
// so distinct properties never collide.
func (s *Store) SetProperty(key, value any) { s.props.Store(key, value) }

func (s *Store) GetProperty(key any) (any, bool) { return s.props.Load(key) }
