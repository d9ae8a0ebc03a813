package reactive

import (
	"time"
)

// Propagation is two-phase. The mark phase runs eagerly on write: direct
// subscribers of the written source are marked dirty, and subscribers of
// marked derived nodes are transitively marked check (it is not yet known
// whether the derived value will actually change). The sweep phase runs
// lazily on read via updateIfNecessary: a check node recomputes only when
// one of its sources actually produced a new value. Effects are the
// exception that converts marking into work: every effect reached by the
// mark phase is validated and, if stale, executed before the write
// returns.
//
// Locking: every helper snapshots what it needs under a single slot lock,
// releases it, then recurses. No user code runs under any lock and no two
// slot locks are ever held together.

// propagateFrom performs a full mark-and-flush wave for a write to src
// (a signal write or an async publish). By the time it returns, every
// effect transitively reached by the wave has finished executing.
func propagateFrom(src NodeID) {
	start := time.Now()
	var wave []NodeID
	markSubscribers(src, stateDirty, &wave)
	for _, eid := range wave {
		// A disposed effect mid-wave is skipped silently.
		if _, err := updateIfNecessary(eid); err != nil {
			continue
		}
	}
	if ins := loadInstruments(); ins != nil {
		ins.PropagationFlush(time.Since(start), len(wave))
	}
	debugf("propagation flushed", "source", src.String(), "effects", len(wave))
}

// markSubscribers marks every live subscriber of src with target, pruning
// back-references to disposed subscribers as they are discovered.
func markSubscribers(src NodeID, target nodeState, wave *[]NodeID) {
	var subs []NodeID
	if err := globalRegistry.withNode(src, func(n *node) {
		subs = append([]NodeID(nil), n.subs...)
	}); err != nil {
		return
	}

	var dead []NodeID
	for _, sub := range subs {
		if !markNode(sub, target, wave) {
			dead = append(dead, sub)
		}
	}
	if len(dead) > 0 {
		pruneSubscribers(src, dead)
	}
}

// markNode advances one node's propagation state, schedules effects, and
// recurses into subscribers of derived nodes. Recursion stops at nodes
// already marked, which makes diamond-shaped graphs converge without
// duplicated work. Reports false when the node is gone.
func markNode(id NodeID, target nodeState, wave *[]NodeID) bool {
	var (
		kind nodeKind
		prev nodeState
		wake chan struct{}
	)
	if err := globalRegistry.withNode(id, func(n *node) {
		kind = n.kind
		prev = n.state
		if n.state < target {
			n.state = target
		}
		if n.kind == kindAsync {
			n.notifying = true
			wake = n.wake
		}
	}); err != nil {
		return false
	}

	switch kind {
	case kindEffect:
		// Scheduled exactly once per wave, on the first marking.
		if prev == stateClean {
			*wave = append(*wave, id)
		}
	case kindMemo:
		if prev == stateClean {
			markSubscribers(id, stateCheck, wave)
		}
	case kindAsync:
		if prev == stateClean {
			markSubscribers(id, stateCheck, wave)
		}
		// Wake the background task; capacity-1 channel coalesces bursts.
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	return true
}

// updateIfNecessary lazily resolves a node's propagation state and reports
// whether its value changed. Clean nodes do nothing. Dirty nodes recompute
// now. Check nodes validate each source first and recompute only when some
// source's value actually changed; otherwise they demote to clean without
// recomputing. This is the glitch-freedom core: a node joining two paths
// back to the same root always observes both paths' new values together.
func updateIfNecessary(id NodeID) (bool, error) {
	var (
		st      nodeState
		kind    nodeKind
		sources []NodeID
	)
	if err := globalRegistry.withNode(id, func(n *node) {
		st = n.state
		kind = n.kind
		if n.state == stateCheck {
			sources = append([]NodeID(nil), n.sources...)
		}
	}); err != nil {
		return false, err
	}

	// Signals are never marked, and async nodes recompute only in their
	// background task; a published async value re-marks its subscribers
	// dirty directly, so from here neither has pending changes.
	if kind == kindSignal || kind == kindAsync {
		return false, nil
	}

	switch st {
	case stateClean:
		return false, nil
	case stateDirty:
		return recompute(id)
	default: // stateCheck
		needsRecompute := false
		for _, src := range sources {
			changed, err := updateIfNecessary(src)
			if err != nil {
				// Disposed source: treated as unchanged.
				continue
			}
			if changed {
				needsRecompute = true
				break
			}
		}
		if needsRecompute {
			_ = globalRegistry.withNode(id, func(n *node) {
				n.state = stateDirty
			})
			return recompute(id)
		}
		_ = globalRegistry.withNode(id, func(n *node) {
			if n.state == stateCheck {
				n.state = stateClean
			}
		})
		return false, nil
	}
}

// recompute resets the node to clean and runs its computation. The state
// reset happens first so a mark arriving during the computation is not
// lost. Reports whether the node's cached value changed.
func recompute(id NodeID) (bool, error) {
	var run func() bool
	if err := globalRegistry.withNode(id, func(n *node) {
		run = n.run
		n.state = stateClean
	}); err != nil {
		return false, err
	}
	if run == nil {
		return false, nil
	}
	changed := run()
	if changed {
		promoteCheckSubscribers(id)
	}
	return changed, nil
}

// promoteCheckSubscribers marks check subscribers of a changed node dirty.
// The first validator consumes the changed result of updateIfNecessary;
// without the promotion a second subscriber validating later would find
// the node already clean and wrongly demote itself over a stale value.
// Only check subscribers qualify: a clean one is either mid-recompute
// right now (it reads the new value in that very run) or no longer
// interested.
func promoteCheckSubscribers(id NodeID) {
	var subs []NodeID
	if err := globalRegistry.withNode(id, func(n *node) {
		subs = append([]NodeID(nil), n.subs...)
	}); err != nil {
		return
	}
	for _, sub := range subs {
		_ = globalRegistry.withNode(sub, func(n *node) {
			if n.state == stateCheck {
				n.state = stateDirty
			}
		})
	}
}

// runTracked evaluates fn as node id's computation: reads during fn
// register against id, and on completion the newly observed source set
// atomically replaces the previous one. Sources no longer read are
// unsubscribed, which is what keeps branch-dependent dependencies honest.
func runTracked(id NodeID, fn func()) {
	f := pushFrame(id)
	defer func() {
		popFrame()
		swapSources(id, f.reads)
	}()
	fn()
}

// swapSources installs the freshly observed source list for sub, diffing
// against the previous list to drop and add edges.
func swapSources(sub NodeID, reads []NodeID) {
	var old []NodeID
	if err := globalRegistry.withNode(sub, func(n *node) {
		old = n.sources
		n.sources = reads
	}); err != nil {
		return
	}

	current := make(map[NodeID]struct{}, len(reads))
	for _, id := range reads {
		current[id] = struct{}{}
	}
	for _, id := range old {
		if _, keep := current[id]; !keep {
			unsubscribe(id, sub)
		}
	}
	previous := make(map[NodeID]struct{}, len(old))
	for _, id := range old {
		previous[id] = struct{}{}
	}
	for _, id := range reads {
		if _, had := previous[id]; !had {
			subscribe(id, sub)
		}
	}
}

// subscribe appends sub to src's subscriber list (registration order).
// A disposed source is ignored: the read that observed it already failed
// or raced a disposal the async path tolerates.
func subscribe(src, sub NodeID) {
	_ = globalRegistry.withNode(src, func(n *node) {
		for _, existing := range n.subs {
			if existing == sub {
				return
			}
		}
		n.subs = append(n.subs, sub)
	})
}

// unsubscribe removes sub from src's subscriber list.
func unsubscribe(src, sub NodeID) {
	_ = globalRegistry.withNode(src, func(n *node) {
		for i, existing := range n.subs {
			if existing == sub {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	})
}

// pruneSubscribers drops dead back-references discovered during a mark.
func pruneSubscribers(src NodeID, dead []NodeID) {
	gone := make(map[NodeID]struct{}, len(dead))
	for _, id := range dead {
		gone[id] = struct{}{}
	}
	_ = globalRegistry.withNode(src, func(n *node) {
		kept := n.subs[:0]
		for _, sub := range n.subs {
			if _, isDead := gone[sub]; !isDead {
				kept = append(kept, sub)
			}
		}
		n.subs = kept
	})
}
