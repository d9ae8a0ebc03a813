package reactive

import (
	"fmt"
	"reflect"
)

// Memo is a cached derived computation over other reactive nodes. It is
// pull-evaluated: the computation runs only from inside the dirty branch
// of validation, never eagerly on write, and never more than once per
// propagation wave regardless of fan-out. A memo whose recomputed value
// is equal to the previous one (under its equality function) does not
// propagate to its own subscribers.
type Memo[T any] struct {
	id   NodeID
	info handleInfo
	cfg  *memoConfig[T]
}

// memoConfig holds the typed pieces the type-erased node closure needs.
type memoConfig[T any] struct {
	compute func() T
	equal   func(T, T) bool
}

// NewMemo creates a lazy memoized computation. Nothing runs until the
// first Get. The node attaches to the ambient current owner.
func NewMemo[T any](compute func() T) *Memo[T] {
	info := handleInfo{
		typeName: fmt.Sprintf("Memo[%s]", typeKey[T]().String()),
		site:     callerSite(1),
	}
	cfg := &memoConfig[T]{compute: compute}
	n := &node{
		kind:  kindMemo,
		state: stateDirty,
		name:  info.typeName,
		owner: currentOwner(),
	}
	m := &Memo[T]{info: info, cfg: cfg}
	n.run = func() bool {
		return m.recompute()
	}
	m.id = globalRegistry.allocate(n)
	return m
}

// WithEquals configures a custom equality function, used to decide whether
// a recompute should propagate to the memo's subscribers. Must be set
// before the first read. The default compares with == for common scalar
// types and reflect.DeepEqual otherwise.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.cfg.equal = fn
	return m
}

// Get validates the memo and returns its value, subscribing the current
// observer. Recomputes at most once per upstream write, and not at all
// when validation shows no source value actually changed.
func (m *Memo[T]) Get() T {
	trackRead(m.id)
	_, err := updateIfNecessary(m.id)
	m.info.must("read", err)
	v, err := valueOf[T](m.id)
	m.info.must("read", err)
	return v
}

// With applies fn to the validated value under tracking.
func (m *Memo[T]) With(fn func(T)) {
	fn(m.Get())
}

// Peek validates and returns the value without subscribing.
func (m *Memo[T]) Peek() T {
	var v T
	Untracked(func() {
		_, err := updateIfNecessary(m.id)
		m.info.must("read", err)
		var verr error
		v, verr = valueOf[T](m.id)
		m.info.must("read", verr)
	})
	return v
}

// Track subscribes the current observer without reading the value.
func (m *Memo[T]) Track() {
	err := globalRegistry.withNode(m.id, func(*node) {})
	m.info.must("track", err)
	trackRead(m.id)
}

// ID returns the memo's node identifier.
func (m *Memo[T]) ID() NodeID {
	return m.id
}

// recompute runs the computation under dependency tracking and stores the
// result. Reports whether the value changed, which gates whether check
// subscribers get promoted to dirty.
func (m *Memo[T]) recompute() bool {
	prevAny, had, err := globalRegistry.rawValue(m.id)
	if err != nil {
		return false
	}

	var next T
	runTracked(m.id, func() {
		next = m.cfg.compute()
	})

	changed := true
	if had {
		var prev T
		ok := true
		if prevAny != nil {
			prev, ok = prevAny.(T)
		}
		if ok {
			changed = !m.equals(prev, next)
		}
	}
	if storeErr := globalRegistry.storeValue(m.id, next); storeErr != nil {
		// Owner disposed during the computation; drop the result.
		return false
	}
	if ins := loadInstruments(); ins != nil {
		ins.MemoRecompute(changed)
	}
	return changed
}

func (m *Memo[T]) equals(a, b T) bool {
	if m.cfg.equal != nil {
		return m.cfg.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals compares with == for common scalar types and falls back
// to reflect.DeepEqual for slices, maps and structs.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
