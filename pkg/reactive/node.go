package reactive

// nodeState is a node's propagation state. States only ever advance
// Clean -> Check -> Dirty during marking and reset to Clean when the node
// successfully validates or recomputes.
type nodeState uint8

const (
	// stateClean means the cached value is valid as-is.
	stateClean nodeState = iota

	// stateCheck means an upstream write happened somewhere above this
	// node, but it is not yet known whether any of its sources actually
	// changed value. Resolved lazily on read.
	stateCheck

	// stateDirty means the node must recompute before its value is used.
	stateDirty
)

func (s nodeState) String() string {
	switch s {
	case stateClean:
		return "clean"
	case stateCheck:
		return "check"
	case stateDirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// nodeKind identifies what a slot holds.
type nodeKind uint8

const (
	kindSignal nodeKind = iota + 1
	kindMemo
	kindEffect
	kindAsync
)

func (k nodeKind) String() string {
	switch k {
	case kindSignal:
		return "signal"
	case kindMemo:
		return "memo"
	case kindEffect:
		return "effect"
	case kindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Cleanup is a function returned by effects to release resources set up
// by the previous run. It is called before the effect re-runs and when
// the effect's owner is disposed.
type Cleanup func()

// node is the type-erased per-slot state shared by every node kind.
// All fields are guarded by the slot's mutex; user code never runs while
// it is held.
type node struct {
	kind  nodeKind
	state nodeState

	// name is the optional diagnostic name plus the declared type.
	name string

	// value is the current value for signals, memos and async nodes.
	// hasValue distinguishes "never computed" from a zero value.
	value    any
	hasValue bool

	// sources are the subscriber->source edges established by the last
	// evaluation, in read order. Plain IDs: the owning scope's lifetime
	// keeps them meaningful.
	sources []NodeID

	// subs are the source->subscriber back-references, in subscription
	// registration order. Weak: validated on every mark and pruned
	// lazily when found dead.
	subs []NodeID

	// owner is the scope this node belongs to.
	owner *Owner

	// run recomputes the node (memos and effects). It reports whether
	// the cached value changed under the node's equality function.
	// nil for signals and async nodes.
	run func() bool

	// cleanup runs when the node is freed: the effect's pending cleanup
	// from its previous run, or the async node's shutdown hook.
	cleanup Cleanup

	// wake is the async node's wake-up channel (capacity 1); notifying
	// records that a wake has been queued and not yet picked up.
	wake      chan struct{}
	notifying bool
}
