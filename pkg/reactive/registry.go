package reactive

import (
	"sync"
)

// slot is one arena cell. The generation counter is bumped on free so a
// NodeID held past disposal fails validation instead of aliasing a reused
// slot. Each slot has its own lock; the propagation algorithm never holds
// more than one at a time.
type slot struct {
	mu   sync.RWMutex
	gen  uint32
	node *node
}

// registry is the arena backing all node storage. Slots are reused via a
// free list; allocation is the only operation that takes the registry
// lock, everything else goes through per-slot locks.
type registry struct {
	mu    sync.Mutex
	slots []*slot
	free  []uint32
}

// globalRegistry backs every node in the process. Owners partition its
// contents; disposal frees the owned slots.
var globalRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{}
}

// allocate stores n in a fresh or recycled slot and attaches the node to
// its owner. Generation starts at 1 so the zero NodeID is never valid.
func (r *registry) allocate(n *node) NodeID {
	r.mu.Lock()
	var idx uint32
	if len(r.free) > 0 {
		idx = r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, &slot{})
	}
	s := r.slots[idx]
	r.mu.Unlock()

	s.mu.Lock()
	s.gen++
	s.node = n
	id := NodeID{index: idx, gen: s.gen}
	s.mu.Unlock()

	if n.owner != nil {
		n.owner.addNode(id)
	}
	if ins := loadInstruments(); ins != nil {
		ins.NodeCreated(n.kind.String())
	}
	return id
}

// slotAt returns the slot for an index, or nil when out of range.
func (r *registry) slotAt(index uint32) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(index) >= len(r.slots) {
		return nil
	}
	return r.slots[index]
}

// withNode runs fn with the slot's write lock held and the node validated
// against the NodeID's generation. fn must not touch any other slot.
func (r *registry) withNode(id NodeID, fn func(n *node)) error {
	s := r.slotAt(id.index)
	if s == nil {
		return ErrDisposed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != id.gen || s.node == nil {
		return ErrDisposed
	}
	fn(s.node)
	return nil
}

// freeNode clears a slot and bumps its generation, invalidating every
// outstanding NodeID for it. Returns the evicted node so the caller can
// run its cleanup outside the lock.
func (r *registry) freeNode(id NodeID) *node {
	s := r.slotAt(id.index)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.gen != id.gen || s.node == nil {
		s.mu.Unlock()
		return nil
	}
	n := s.node
	s.node = nil
	s.gen++
	s.mu.Unlock()

	r.mu.Lock()
	r.free = append(r.free, id.index)
	r.mu.Unlock()

	if ins := loadInstruments(); ins != nil {
		ins.NodeDisposed(n.kind.String())
	}
	return n
}

// storeValue replaces the node's current value.
func (r *registry) storeValue(id NodeID, v any) error {
	return r.withNode(id, func(n *node) {
		n.value = v
		n.hasValue = true
	})
}

// rawValue reads the node's current value without tracking.
func (r *registry) rawValue(id NodeID) (v any, ok bool, err error) {
	err = r.withNode(id, func(n *node) {
		v, ok = n.value, n.hasValue
	})
	return v, ok, err
}

// valueOf reads and downcasts a node's value. A failed downcast reports
// ErrTypeMismatch; the typed handles make that unreachable externally.
func valueOf[T any](id NodeID) (T, error) {
	var zero T
	v, ok, err := globalRegistry.rawValue(id)
	if err != nil {
		return zero, err
	}
	if !ok || v == nil {
		// Never computed, or a nil interface value; both read as zero.
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return typed, nil
}
