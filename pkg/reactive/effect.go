package reactive

// Effect is an eagerly executed terminal subscriber: it exists purely for
// side effects and is the only node kind that runs immediately when a
// write marks it, rather than waiting to be read. Each run re-establishes
// the effect's dependency set from scratch, so its sources may differ
// between runs exactly like a derived computation's.
type Effect struct {
	id   NodeID
	info handleInfo
}

// EffectOption configures an effect at construction.
type EffectOption interface {
	applyEffect(n *node)
}

type effectOptionFunc func(*node)

func (f effectOptionFunc) applyEffect(n *node) { f(n) }

// WithEffectName attaches a diagnostic name, surfaced in telemetry and
// failure messages.
func WithEffectName(name string) EffectOption {
	return effectOptionFunc(func(n *node) {
		n.name = name
	})
}

// NewEffect creates an effect and runs it immediately. The effect re-runs
// synchronously inside every write that reaches it; the triggering Set
// does not return until the effect has finished. If fn returns a non-nil
// Cleanup it is called before the next run and on disposal.
//
//	count, setCount := NewSignal(0)
//	NewEffect(func() Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//	setCount.Set(1) // effect has logged "count is 1" before this returns
func NewEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	info := handleInfo{
		typeName: "Effect",
		site:     callerSite(1),
	}
	n := &node{
		kind:  kindEffect,
		state: stateDirty,
		name:  info.typeName,
		owner: currentOwner(),
	}
	for _, opt := range opts {
		opt.applyEffect(n)
	}
	e := &Effect{info: info}
	n.run = func() bool {
		e.execute(fn)
		return false
	}
	e.id = globalRegistry.allocate(n)

	// Initial eager run.
	if _, err := updateIfNecessary(e.id); err != nil {
		e.info.must("run", err)
	}
	return e
}

// ID returns the effect's node identifier.
func (e *Effect) ID() NodeID {
	return e.id
}

// execute runs one effect pass: previous cleanup first, then the body
// under dependency tracking.
func (e *Effect) execute(fn func() Cleanup) {
	var cleanup Cleanup
	if err := globalRegistry.withNode(e.id, func(n *node) {
		cleanup = n.cleanup
		n.cleanup = nil
	}); err != nil {
		return
	}
	if cleanup != nil {
		cleanup()
	}

	var next Cleanup
	runTracked(e.id, func() {
		next = fn()
	})

	_ = globalRegistry.withNode(e.id, func(n *node) {
		n.cleanup = next
	})
	if ins := loadInstruments(); ins != nil {
		ins.EffectRun()
	}
}
