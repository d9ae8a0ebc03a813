package reactive

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned when a node is accessed after its owning scope
// was torn down. Internal machinery tolerates this silently (an async
// evaluation racing a disposal simply stops); the typed public accessors
// treat it as programmer error and panic with the node's creation site.
var ErrDisposed = errors.New("reactive: node disposed")

// ErrTypeMismatch is returned when a type-erased value fails its downcast.
// The typed public API makes this unreachable from application code; seeing
// it indicates an internal invariant violation.
var ErrTypeMismatch = errors.New("reactive: node value type mismatch")

// ErrReentrant is returned when a signal is written from inside its own
// read-closure, i.e. during the evaluation of a computation that already
// read it. The engine fails fast instead of looping or deadlocking.
var ErrReentrant = errors.New("reactive: reentrant write during evaluation")

// AccessError decorates a low-level failure with the node's declared type
// and creation site so the panic raised by public accessors is actionable.
type AccessError struct {
	Op   string // operation that failed, e.g. "read", "write"
	Node string // declared type, e.g. "Signal[int]"
	Site string // creation site, "file.go:line"
	Err  error  // underlying sentinel
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	return fmt.Sprintf("reactive: %s of %s (created at %s): %v", e.Op, e.Node, e.Site, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is.
func (e *AccessError) Unwrap() error {
	return e.Err
}

// handleInfo carries per-handle diagnostics, recorded at construction.
// It outlives the node slot so errors can be described after disposal.
type handleInfo struct {
	typeName string
	site     string
}

// accessErr builds an AccessError for this handle.
func (h handleInfo) accessErr(op string, err error) *AccessError {
	return &AccessError{Op: op, Node: h.typeName, Site: h.site, Err: err}
}

// must panics with a descriptive AccessError when err is non-nil.
// Used by the ergonomic accessors; low-level paths keep the error.
func (h handleInfo) must(op string, err error) {
	if err != nil {
		panic(h.accessErr(op, err))
	}
}
