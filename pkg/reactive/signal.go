package reactive

import (
	"fmt"
)

// Signal is the read handle of a reactive cell. Reading it during a
// tracked evaluation (a memo computation, an effect run, or an async
// evaluation) subscribes that evaluation to the cell's changes.
//
// Signals carry no equality test: memoization is the derived
// computation's job, not the signal's.
type Signal[T any] struct {
	id   NodeID
	info handleInfo
}

// SignalWriter is the write handle sharing the same cell. Writes always
// notify, and every effect reached by the notification has finished
// executing by the time Set or Update returns.
type SignalWriter[T any] struct {
	id   NodeID
	info handleInfo
}

// SignalOption configures a signal at construction.
type SignalOption interface {
	applySignal(n *node)
}

type signalOptionFunc func(*node)

func (f signalOptionFunc) applySignal(n *node) { f(n) }

// WithSignalName attaches a diagnostic name, surfaced in telemetry and
// failure messages.
func WithSignalName(name string) SignalOption {
	return signalOptionFunc(func(n *node) {
		n.name = name
	})
}

// NewSignal creates a reactive cell holding initial and returns its read
// and write handles. The node attaches to the ambient current owner.
func NewSignal[T any](initial T, opts ...SignalOption) (*Signal[T], *SignalWriter[T]) {
	info := handleInfo{
		typeName: fmt.Sprintf("Signal[%s]", typeKey[T]().String()),
		site:     callerSite(1),
	}
	n := &node{
		kind:     kindSignal,
		state:    stateClean,
		name:     info.typeName,
		value:    initial,
		hasValue: true,
		owner:    currentOwner(),
	}
	for _, opt := range opts {
		opt.applySignal(n)
	}
	id := globalRegistry.allocate(n)
	return &Signal[T]{id: id, info: info}, &SignalWriter[T]{id: id, info: info}
}

// Get returns the current value, subscribing the current observer.
// Panics with a descriptive error if the owning scope was disposed.
func (s *Signal[T]) Get() T {
	v, err := valueOf[T](s.id)
	s.info.must("read", err)
	trackRead(s.id)
	return v
}

// With applies fn to the current value under tracking. Equivalent to
// fn(s.Get()) but keeps the read-and-use pairing explicit.
func (s *Signal[T]) With(fn func(T)) {
	fn(s.Get())
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	v, err := valueOf[T](s.id)
	s.info.must("read", err)
	return v
}

// Track subscribes the current observer without reading the value.
func (s *Signal[T]) Track() {
	err := globalRegistry.withNode(s.id, func(*node) {})
	s.info.must("track", err)
	trackRead(s.id)
}

// ID returns the signal's node identifier.
func (s *Signal[T]) ID() NodeID {
	return s.id
}

// Set replaces the value and notifies subscribers. Notification is
// unconditional: Set(x) propagates even when x equals the previous value;
// downstream memos cut the wave off via their own equality test.
func (w *SignalWriter[T]) Set(value T) {
	w.write(func(T) T { return value })
}

// Update atomically replaces the value with fn(current) and notifies
// subscribers. fn runs under the cell's lock: it must not block and must
// not read or write any reactive node, this one included. For a new
// value derived from other cells, compute it first and call Set.
func (w *SignalWriter[T]) Update(fn func(T) T) {
	w.write(fn)
}

// ID returns the writer's node identifier (shared with the reader).
func (w *SignalWriter[T]) ID() NodeID {
	return w.id
}

func (w *SignalWriter[T]) write(fn func(T) T) {
	if wasReadInEvaluation(w.id) {
		panic(w.info.accessErr("write", ErrReentrant))
	}
	var mismatch bool
	err := globalRegistry.withNode(w.id, func(n *node) {
		var cur T
		if n.value != nil {
			typed, ok := n.value.(T)
			if !ok {
				mismatch = true
				return
			}
			cur = typed
		}
		n.value = fn(cur)
		n.hasValue = true
	})
	w.info.must("write", err)
	if mismatch {
		panic(w.info.accessErr("write", ErrTypeMismatch))
	}
	if ins := loadInstruments(); ins != nil {
		ins.SignalWrite()
	}
	propagateFrom(w.id)
}
