package reactive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// AsyncDerived is a value produced by an asynchronous computation that
// itself reads reactive sources, while remaining an ordinary node other
// computations can depend on.
//
// A background task owns the node's recomputation: every upstream mark
// wakes it, it revalidates the sources, and when a real recompute is
// warranted it runs the computation on the node's Executor under
// dependency tracking. A monotonic version counter guards against
// staleness: a result whose evaluation was superseded while it ran is
// discarded, never published. Superseded work is not aborted, only its
// result is dropped; pass the evaluation context on to downstream calls
// for cooperative cancellation on disposal.
type AsyncDerived[T any] struct {
	id   NodeID
	info handleInfo

	fn   func(ctx context.Context) (T, error)
	exec Executor
	wake chan struct{}

	// refs counts live eager subscriptions per source across overlapping
	// evaluations, so a discarded run never drops an edge a newer
	// in-flight run already registered.
	refs eagerRefs

	// version increments once per accepted recompute; evaluations capture
	// it before running and publish only if still current afterwards.
	version atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ready   bool
	err     error
	waiters []chan struct{}

	loading    *Signal[bool]
	setLoading *SignalWriter[bool]
}

// eagerRefs is the per-node reference count of eager subscriptions held
// by in-flight evaluations. Each evaluation acquires one reference per
// source on first read and releases them all when it finishes; a source
// becomes prunable only when its count reaches zero.
type eagerRefs struct {
	mu   sync.Mutex
	refs map[NodeID]int
}

func (r *eagerRefs) acquire(id NodeID) {
	r.mu.Lock()
	if r.refs == nil {
		r.refs = make(map[NodeID]int)
	}
	r.refs[id]++
	r.mu.Unlock()
}

// release drops one reference per read and returns the sources no longer
// held by any in-flight evaluation.
func (r *eagerRefs) release(reads []NodeID) []NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var free []NodeID
	for _, id := range reads {
		if r.refs[id]--; r.refs[id] <= 0 {
			delete(r.refs, id)
			free = append(free, id)
		}
	}
	return free
}

// AsyncOption configures an async derived value at construction.
type AsyncOption interface {
	applyAsync(cfg *asyncConfig)
}

type asyncConfig struct {
	name       string
	exec       Executor
	blockFirst bool
}

type asyncOptionFunc func(*asyncConfig)

func (f asyncOptionFunc) applyAsync(cfg *asyncConfig) { f(cfg) }

// WithAsyncName attaches a diagnostic name, surfaced in telemetry spans
// and failure messages.
func WithAsyncName(name string) AsyncOption {
	return asyncOptionFunc(func(cfg *asyncConfig) {
		cfg.name = name
	})
}

// WithExecutor selects the executor the evaluations run on. The default
// is GoExecutor. Choose SerialExecutor when the computation's captured
// state is not safe to share across threads.
func WithExecutor(exec Executor) AsyncOption {
	return asyncOptionFunc(func(cfg *asyncConfig) {
		cfg.exec = exec
	})
}

// WithBlockingFirst makes construction wait for the first evaluation, so
// the node starts ready instead of loading.
func WithBlockingFirst() AsyncOption {
	return asyncOptionFunc(func(cfg *asyncConfig) {
		cfg.blockFirst = true
	})
}

// NewAsyncDerived creates an async derived value and starts its first
// evaluation. Until that completes the node reads as the zero value and
// Loading reports true.
//
//	user := NewAsyncDerived(func(ctx context.Context) (User, error) {
//	    id := userID.Get() // tracked: re-evaluates when userID changes
//	    return fetchUser(ctx, id)
//	})
func NewAsyncDerived[T any](fn func(ctx context.Context) (T, error), opts ...AsyncOption) *AsyncDerived[T] {
	var zero T
	return newAsyncDerived(zero, false, fn, callerSite(1), opts)
}

// NewAsyncDerivedWithInitial is NewAsyncDerived with a placeholder value
// readable while the first evaluation is in flight.
func NewAsyncDerivedWithInitial[T any](initial T, fn func(ctx context.Context) (T, error), opts ...AsyncOption) *AsyncDerived[T] {
	return newAsyncDerived(initial, true, fn, callerSite(1), opts)
}

func newAsyncDerived[T any](initial T, hasInitial bool, fn func(ctx context.Context) (T, error), site string, opts []AsyncOption) *AsyncDerived[T] {
	cfg := asyncConfig{exec: defaultExecutor}
	for _, opt := range opts {
		opt.applyAsync(&cfg)
	}
	info := handleInfo{
		typeName: fmt.Sprintf("AsyncDerived[%s]", typeKey[T]().String()),
		site:     site,
	}
	if cfg.name == "" {
		cfg.name = info.typeName
	}

	owner := currentOwner()
	ctx, cancel := context.WithCancel(context.Background())
	a := &AsyncDerived[T]{
		info:   info,
		fn:     fn,
		exec:   cfg.exec,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	n := &node{
		kind:     kindAsync,
		state:    stateDirty,
		name:     cfg.name,
		value:    initial,
		hasValue: hasInitial,
		owner:    owner,
		wake:     a.wake,
	}
	// Disposal is cooperative: cancel the evaluation context, nudge the
	// wake channel, and release parked awaiters. The hook runs after the
	// slot is freed, so the woken loop is guaranteed to observe
	// ErrDisposed and exit.
	n.cleanup = func() {
		a.cancel()
		select {
		case a.wake <- struct{}{}:
		default:
		}
		a.mu.Lock()
		waiters := a.waiters
		a.waiters = nil
		a.mu.Unlock()
		for _, ch := range waiters {
			close(ch)
		}
	}
	a.id = globalRegistry.allocate(n)
	a.loading, a.setLoading = NewSignal(true, WithSignalName(cfg.name+".loading"))

	// Prime the first evaluation.
	a.wake <- struct{}{}
	go a.loop()

	if cfg.blockFirst {
		_, _ = a.Await(context.Background())
	}
	return a
}

// Get returns the current value, subscribing the current observer. Before
// the first evaluation completes this is the initial value (or zero).
// Panics with a descriptive error if the owning scope was disposed.
func (a *AsyncDerived[T]) Get() T {
	v, err := valueOf[T](a.id)
	a.info.must("read", err)
	trackRead(a.id)
	return v
}

// Peek returns the current value without subscribing.
func (a *AsyncDerived[T]) Peek() T {
	v, err := valueOf[T](a.id)
	a.info.must("read", err)
	return v
}

// Track subscribes the current observer without reading the value.
func (a *AsyncDerived[T]) Track() {
	err := globalRegistry.withNode(a.id, func(*node) {})
	a.info.must("track", err)
	trackRead(a.id)
}

// ID returns the node identifier.
func (a *AsyncDerived[T]) ID() NodeID {
	return a.id
}

// Loading reports whether an evaluation is in flight and no value has
// been published for it yet. The flag is itself reactive.
func (a *AsyncDerived[T]) Loading() bool {
	return a.loading.Get()
}

// Err returns the error of the most recently published evaluation,
// subscribing the current observer.
func (a *AsyncDerived[T]) Err() error {
	a.Track()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Await blocks until a value has been published or ctx is done. It does
// not subscribe the caller; combine with Track for reactive use.
func (a *AsyncDerived[T]) Await(ctx context.Context) (T, error) {
	for {
		a.mu.Lock()
		if a.ready {
			resultErr := a.err
			a.mu.Unlock()
			v, err := valueOf[T](a.id)
			if err != nil {
				var zero T
				return zero, err
			}
			return v, resultErr
		}
		// Nothing published yet; bail out rather than park forever if the
		// node is already gone.
		if err := globalRegistry.withNode(a.id, func(*node) {}); err != nil {
			a.mu.Unlock()
			var zero T
			return zero, err
		}
		ch := make(chan struct{})
		a.waiters = append(a.waiters, ch)
		a.mu.Unlock()

		select {
		case <-ch:
			// Published or disposed; loop re-reads.
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Invalidate forces a recompute as if a source had changed.
func (a *AsyncDerived[T]) Invalidate() {
	if err := globalRegistry.withNode(a.id, func(n *node) {
		if n.state < stateDirty {
			n.state = stateDirty
		}
	}); err != nil {
		return
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// loop is the node's background task. It parks on the wake channel,
// revalidates on every wake, and spawns an evaluation when one is
// warranted. It exits when the node's slot is freed.
func (a *AsyncDerived[T]) loop() {
	for range a.wake {
		need, err := a.needsRecompute()
		if err != nil {
			// Scope disposed; stop silently.
			return
		}
		if !need {
			continue
		}

		// The bump is serialized with the accept section in evaluate: once
		// it is visible an older run can only discard, and a new run's
		// first eager read happens after the previous accept finished
		// swapping sources.
		a.mu.Lock()
		v := a.version.Add(1)
		a.mu.Unlock()
		a.setLoadingFlag(true)
		var finish func(stale bool, evalErr error)
		if ins := loadInstruments(); ins != nil {
			finish = ins.AsyncLoadStart(a.info.typeName, v)
		}
		a.exec.Spawn(func() {
			a.evaluate(v, finish)
		})
	}
}

// needsRecompute absorbs the pending mark and decides whether to
// re-evaluate: dirty means yes, check means validate the sources the same
// way a synchronous read would.
func (a *AsyncDerived[T]) needsRecompute() (bool, error) {
	var (
		st      nodeState
		sources []NodeID
	)
	if err := globalRegistry.withNode(a.id, func(n *node) {
		st = n.state
		n.notifying = false
		if st == stateCheck {
			sources = append([]NodeID(nil), n.sources...)
		}
		n.state = stateClean
	}); err != nil {
		return false, err
	}

	switch st {
	case stateClean:
		return false, nil
	case stateDirty:
		return true, nil
	default: // stateCheck
		for _, src := range sources {
			changed, err := updateIfNecessary(src)
			if err != nil {
				continue
			}
			if changed {
				return true, nil
			}
		}
		return false, nil
	}
}

// evaluate runs one computation under dependency tracking and publishes
// the result unless a newer evaluation was triggered meanwhile.
func (a *AsyncDerived[T]) evaluate(v uint64, finish func(stale bool, evalErr error)) {
	// Eager tracking: each read subscribes as it happens, so a write to a
	// source landing mid-evaluation wakes the loop and supersedes this
	// run.
	f := pushFrame(a.id)
	f.eager = &a.refs
	val, evalErr := a.fn(a.ctx)
	popFrame()

	// a.mu serializes the accept-or-discard section across overlapping
	// evaluations; without it a discarded run could unsubscribe edges the
	// accepted run just installed.
	a.mu.Lock()
	if a.version.Load() != v {
		// Superseded while running: discard the result and this run's
		// eager references. An edge is pruned only when no other in-flight
		// evaluation still holds it and the accepted source set does not
		// include it.
		free := a.refs.release(f.reads)
		var current map[NodeID]struct{}
		_ = globalRegistry.withNode(a.id, func(n *node) {
			current = make(map[NodeID]struct{}, len(n.sources))
			for _, src := range n.sources {
				current[src] = struct{}{}
			}
		})
		for _, src := range free {
			if _, keep := current[src]; !keep {
				unsubscribe(src, a.id)
			}
		}
		a.mu.Unlock()
		if finish != nil {
			finish(true, evalErr)
		}
		return
	}
	// Accepted: the eager references hand over to the installed source
	// set, which swapSources reconciles below.
	a.refs.release(f.reads)
	swapSources(a.id, f.reads)

	if storeErr := globalRegistry.storeValue(a.id, val); storeErr != nil {
		// Scope vanished mid-flight; stop notifying.
		a.mu.Unlock()
		if finish != nil {
			finish(false, storeErr)
		}
		return
	}

	a.err = evalErr
	a.ready = true
	waiters := a.waiters
	a.waiters = nil
	a.mu.Unlock()

	// Loading flips before waiters wake so an awaiter observes the
	// settled state.
	a.setLoadingFlag(false)
	for _, ch := range waiters {
		close(ch)
	}
	if finish != nil {
		finish(false, evalErr)
	}
	// Downstream subscribers see the new value exactly like a signal
	// write: direct subscribers dirty, transitive ones check.
	propagateFrom(a.id)
}

// setLoadingFlag writes the loading signal without panicking on a
// disposal race.
func (a *AsyncDerived[T]) setLoadingFlag(val bool) {
	if err := globalRegistry.withNode(a.setLoading.id, func(n *node) {
		n.value = val
		n.hasValue = true
	}); err != nil {
		return
	}
	propagateFrom(a.setLoading.id)
}
