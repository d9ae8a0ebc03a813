package reactive

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// NodeID addresses a node slot in the registry. The generation counter
// distinguishes a live slot from a reused one: a stale NodeID held after
// its owner was disposed fails validation instead of resolving to an
// unrelated node.
type NodeID struct {
	index uint32
	gen   uint32
}

// String returns a compact form like "n42@3" for diagnostics.
func (id NodeID) String() string {
	return fmt.Sprintf("n%d@%d", id.index, id.gen)
}

// ownerIDCounter is the source of unique Owner identifiers.
var ownerIDCounter uint64

// nextOwnerID returns the next unique Owner identifier.
func nextOwnerID() uint64 {
	return atomic.AddUint64(&ownerIDCounter, 1)
}

// callerSite returns "file.go:line" for the caller skip levels up.
// Recorded at node construction so that access failures after disposal
// can name the creation site.
func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
