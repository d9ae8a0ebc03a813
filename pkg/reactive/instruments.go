package reactive

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Instruments receives engine events. The core never depends on a metrics
// or tracing library directly; install an implementation (for example
// telemetry.Install) to export to Prometheus and OpenTelemetry.
type Instruments interface {
	// NodeCreated and NodeDisposed track the live node population per kind.
	NodeCreated(kind string)
	NodeDisposed(kind string)

	// OwnerCreated and OwnerDisposed track the live scope population.
	OwnerCreated()
	OwnerDisposed()

	// SignalWrite fires once per Set or Update.
	SignalWrite()

	// MemoRecompute fires once per memo computation; changed reports
	// whether the result propagated.
	MemoRecompute(changed bool)

	// EffectRun fires once per effect execution.
	EffectRun()

	// PropagationFlush fires at the end of each write's mark-and-flush
	// wave with its duration and the number of effects it executed.
	PropagationFlush(d time.Duration, effects int)

	// AsyncLoadStart fires when an async evaluation is spawned. The
	// returned func is called exactly once on completion; stale means the
	// result was discarded because a newer evaluation superseded it.
	AsyncLoadStart(name string, version uint64) func(stale bool, err error)
}

// instruments holds the installed sink behind an atomic pointer so hot
// paths can load it without racing a concurrent install.
var instruments atomic.Pointer[Instruments]

// SetInstruments installs the event sink. Pass nil to disable. Safe to
// call while nodes are live; events already in flight may still reach the
// previous sink.
func SetInstruments(ins Instruments) {
	if ins == nil {
		instruments.Store(nil)
		return
	}
	instruments.Store(&ins)
}

func loadInstruments() Instruments {
	if p := instruments.Load(); p != nil {
		return *p
	}
	return nil
}

// DebugMode enables debug logging of propagation waves and disposals.
// Off by default; the debug paths format node IDs, which is wasted work
// in production.
var DebugMode bool

var logger = slog.Default()

// SetLogger replaces the logger used when DebugMode is on.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func debugf(msg string, args ...any) {
	if !DebugMode {
		return
	}
	logger.Debug(msg, args...)
}
