package reactive

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Owner is a scope that owns reactive nodes and context values. Owners
// form a tree; disposing one disposes its entire subtree as a unit,
// running registered cleanups last-in first-out and then dropping the
// owned node storage. After disposal, reads of owned nodes fail with
// ErrDisposed rather than returning stale data.
type Owner struct {
	id uint64

	// parent is nil for a root Owner.
	parent *Owner

	children   []*Owner
	childrenMu sync.Mutex

	// nodes are the slots owned by this scope, in creation order.
	nodes   []NodeID
	nodesMu sync.Mutex

	// cleanups run in reverse registration order on disposal.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// values stores context entries keyed by value type.
	values   map[reflect.Type]any
	valuesMu sync.RWMutex

	disposed atomic.Bool
}

// NewRoot creates an Owner with no parent. Roots are disposed only
// explicitly.
func NewRoot() *Owner {
	if ins := loadInstruments(); ins != nil {
		ins.OwnerCreated()
	}
	return &Owner{id: nextOwnerID()}
}

// Child creates a new Owner under o. It is disposed when o is disposed,
// or earlier if disposed explicitly.
func (o *Owner) Child() *Owner {
	child := &Owner{id: nextOwnerID(), parent: o}
	o.childrenMu.Lock()
	o.children = append(o.children, child)
	o.childrenMu.Unlock()
	if ins := loadInstruments(); ins != nil {
		ins.OwnerCreated()
	}
	return child
}

// ID returns the unique identifier for this Owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil for a root.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed reports whether this Owner has been disposed.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

// With runs fn with o as the ambient current owner for the dynamic extent
// of the call, restoring the previous owner afterwards. Nodes created
// inside fn attach to o.
//
//	scope := NewRoot()
//	scope.With(func() {
//	    count, _ := NewSignal(0) // owned by scope
//	    _ = count
//	})
func (o *Owner) With(fn func()) {
	old := setCurrentOwner(o)
	defer setCurrentOwner(old)
	fn()
}

// OnCleanup registers fn to run when o is disposed. Cleanups run in
// reverse registration order, before node storage is dropped. Registering
// on an already-disposed Owner runs fn immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed.Load() {
		fn()
		return
	}
	o.cleanupsMu.Lock()
	o.cleanups = append(o.cleanups, fn)
	o.cleanupsMu.Unlock()
}

// OnCleanup registers fn on the ambient current owner.
func OnCleanup(fn func()) {
	currentOwner().OnCleanup(fn)
}

// addNode records a slot as owned by this scope. Nodes created under an
// already-disposed owner are freed immediately so they never outlive it.
func (o *Owner) addNode(id NodeID) {
	if o.disposed.Load() {
		disposeNode(id)
		return
	}
	o.nodesMu.Lock()
	o.nodes = append(o.nodes, id)
	o.nodesMu.Unlock()
}

// removeChild detaches an explicitly disposed child.
func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// Dispose tears down this Owner: children first (most recent first), then
// effect cleanups and registered cleanups in reverse order, then the owned
// node slots. Disposing twice is a no-op.
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}
	debugf("owner disposed", "owner", o.id)

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.childrenMu.Lock()
	children := make([]*Owner, len(o.children))
	copy(children, o.children)
	o.children = nil
	o.childrenMu.Unlock()
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	o.cleanupsMu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	o.nodesMu.Lock()
	nodes := o.nodes
	o.nodes = nil
	o.nodesMu.Unlock()
	for i := len(nodes) - 1; i >= 0; i-- {
		disposeNode(nodes[i])
	}

	o.valuesMu.Lock()
	o.values = nil
	o.valuesMu.Unlock()

	if ins := loadInstruments(); ins != nil {
		ins.OwnerDisposed()
	}
}

// disposeNode frees one slot, then runs the node's cleanup hook. Freeing
// first means the hook (and anything it wakes) observes ErrDisposed.
func disposeNode(id NodeID) {
	n := globalRegistry.freeNode(id)
	if n == nil {
		return
	}
	if n.cleanup != nil {
		n.cleanup()
	}
}

// provide stores a context value on this Owner, keyed by its type.
func (o *Owner) provide(key reflect.Type, value any) {
	o.valuesMu.Lock()
	if o.values == nil {
		o.values = make(map[reflect.Type]any)
	}
	o.values[key] = value
	o.valuesMu.Unlock()
}

// lookup walks from this Owner outward to the root looking for a context
// value of the given type.
func (o *Owner) lookup(key reflect.Type) (any, bool) {
	for cur := o; cur != nil; cur = cur.parent {
		cur.valuesMu.RLock()
		v, ok := cur.values[key]
		cur.valuesMu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// implicitRoot is the shared Owner for nodes created outside any explicit
// With scope. It lives for the process lifetime.
var (
	implicitRoot     *Owner
	implicitRootOnce sync.Once
)

func defaultRoot() *Owner {
	implicitRootOnce.Do(func() {
		implicitRoot = NewRoot()
	})
	return implicitRoot
}
