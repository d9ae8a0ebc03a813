package reactive

import (
	"sync"

	"github.com/petermattis/goid"
)

// evalFrame records one computation currently being evaluated on this
// goroutine. Reads performed during the evaluation land in reads (in
// first-read order); the frame's node swaps them in as its source set
// when the evaluation finishes. A nil frame on the stack marks an
// Untracked region.
type evalFrame struct {
	node    NodeID
	reads   []NodeID
	readSet map[NodeID]struct{}

	// eager, when set, makes each read subscribe immediately instead of
	// waiting for the end-of-evaluation source swap, recording the edge in
	// the shared reference set. Async evaluations need this: a write
	// landing while one is in flight must reach the node's wake channel so
	// the in-flight result can be superseded.
	eager *eagerRefs
}

// goroutineState is the ambient reactive state for one goroutine: the
// current owner for node attribution and the observer stack for
// dependency tracking.
type goroutineState struct {
	owner  *Owner
	frames []*evalFrame
}

// goroutineStates maps goroutine id -> *goroutineState. Entries are
// created on demand and are cheap; they are removed when both the owner
// and the frame stack are cleared.
var goroutineStates sync.Map

func currentState() *goroutineState {
	gid := goid.Get()
	if st, ok := goroutineStates.Load(gid); ok {
		return st.(*goroutineState)
	}
	st := &goroutineState{}
	goroutineStates.Store(gid, st)
	return st
}

// maybeReleaseState drops the goroutine's entry once nothing references it,
// so short-lived goroutines do not accumulate in the map.
func maybeReleaseState(st *goroutineState) {
	if st.owner == nil && len(st.frames) == 0 {
		goroutineStates.Delete(goid.Get())
	}
}

// currentOwner returns the ambient owner for this goroutine, falling back
// to the shared implicit root.
func currentOwner() *Owner {
	st := currentState()
	if st.owner != nil {
		return st.owner
	}
	return defaultRoot()
}

// setCurrentOwner installs o as the ambient owner and returns the previous
// one so callers can restore it (stack discipline).
func setCurrentOwner(o *Owner) *Owner {
	st := currentState()
	old := st.owner
	st.owner = o
	if o == nil {
		maybeReleaseState(st)
	}
	return old
}

// pushFrame begins dependency tracking for a node evaluation.
func pushFrame(id NodeID) *evalFrame {
	f := &evalFrame{node: id, readSet: make(map[NodeID]struct{})}
	st := currentState()
	st.frames = append(st.frames, f)
	return f
}

// pushUntracked pushes a nil frame, suppressing dependency registration
// for the dynamic extent until the matching popFrame.
func pushUntracked() {
	st := currentState()
	st.frames = append(st.frames, nil)
}

func popFrame() {
	st := currentState()
	if len(st.frames) == 0 {
		return
	}
	st.frames = st.frames[:len(st.frames)-1]
	maybeReleaseState(st)
}

// trackRead registers a dependency of the innermost tracked evaluation on
// src. Reads outside any evaluation, or under Untracked, register nothing.
func trackRead(src NodeID) {
	st := currentState()
	if len(st.frames) == 0 {
		maybeReleaseState(st)
		return
	}
	f := st.frames[len(st.frames)-1]
	if f == nil {
		// Untracked region.
		return
	}
	if _, seen := f.readSet[src]; seen {
		return
	}
	f.readSet[src] = struct{}{}
	f.reads = append(f.reads, src)
	if f.eager != nil {
		subscribe(src, f.node)
		f.eager.acquire(src)
	}
}

// wasReadInEvaluation reports whether id was read by any evaluation
// currently on this goroutine's observer stack. This is the reentrancy
// guard: writing such a node from inside the evaluation that read it
// would invalidate the evaluation's own inputs.
func wasReadInEvaluation(id NodeID) bool {
	st := currentState()
	for _, f := range st.frames {
		if f == nil {
			continue
		}
		if _, ok := f.readSet[id]; ok {
			return true
		}
	}
	if len(st.frames) == 0 {
		maybeReleaseState(st)
	}
	return false
}

// Untracked runs fn with dependency registration suppressed: signal and
// memo reads inside fn do not subscribe the current observer.
//
//	NewEffect(func() Cleanup {
//	    _ = watched.Get() // tracked
//	    Untracked(func() {
//	        _ = config.Get() // not tracked
//	    })
//	    return nil
//	})
func Untracked(fn func()) {
	pushUntracked()
	defer popFrame()
	fn()
}
