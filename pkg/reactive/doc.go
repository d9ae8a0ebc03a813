// Package reactive provides a fine-grained incremental-computation runtime:
// mutable signals, lazy derived computations, eager side effects, and
// async derived values, connected by an automatically tracked dependency
// graph with glitch-free propagation.
//
// # Core Types
//
// Signal[T] is a mutable reactive cell. Reading it during a tracked
// evaluation registers a dependency edge; writing it notifies every
// dependent node:
//
//	count, setCount := NewSignal(0)
//	value := count.Get() // read (subscribes the current observer)
//	setCount.Set(5)      // write (always notifies, flushes effects)
//
// Memo[T] is a cached derived computation. It is lazy: it only recomputes
// when read after a dependency changed, and only propagates further when
// its own value actually changed under its equality function:
//
//	doubled := NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()
//
// Effect runs side effects eagerly. Every effect reached by a write has
// finished running before the write call returns:
//
//	NewEffect(func() Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//
// AsyncDerived[T] bridges the synchronous graph to background work on a
// pluggable Executor, with a version-counter staleness guard so only the
// latest evaluation's result is ever published.
//
// # Ownership
//
// Every node is owned by exactly one Owner. Owners form a tree and are
// disposed as a unit, running registered cleanups last-in first-out and
// then dropping node storage. Nodes created outside any explicit
// Owner.With scope attach to a shared implicit root:
//
//	root := NewRoot()
//	root.With(func() {
//	    sig, _ := NewSignal("hello") // owned by root
//	    _ = sig
//	})
//	root.Dispose() // sig reads now fail with ErrDisposed
//
// # Propagation
//
// Writes mark the graph eagerly (direct subscribers dirty, transitive
// subscribers check) and reads validate lazily: a node at
// "check" recomputes only if one of its sources actually produced a new
// value. Diamond-shaped graphs therefore recompute each node at most once
// per write and never observe a stale/fresh mix of upstream values.
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The ambient current-owner
// and current-observer state is per goroutine; use Owner.With when
// creating nodes from a spawned goroutine.
package reactive
