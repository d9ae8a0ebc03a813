package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Default tracer name for reactive spans.
const defaultTracerName = "reactive"

// Config configures the telemetry collector.
type Config struct {
	// Namespace is the metrics namespace (default: "reactive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for propagation flush duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// TracerName is the name of the tracer (default: "reactive").
	TracerName string
}

// Option configures the telemetry collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// defaultConfig returns the default telemetry configuration.
func defaultConfig() Config {
	return Config{
		Namespace:  "reactive",
		Buckets:    prometheus.DefBuckets,
		Registry:   prometheus.DefaultRegisterer,
		TracerName: defaultTracerName,
	}
}

// Collector implements the engine's instrumentation hook on top of
// Prometheus counters and OpenTelemetry spans.
//
// Metrics collected:
//   - reactive_signal_writes_total: Counter of signal writes
//   - reactive_memo_recomputes_total: Counter of memo computations by
//     whether the result changed
//   - reactive_effect_runs_total: Counter of effect executions
//   - reactive_async_loads_total: Counter of async evaluations by result
//     (ok, error, stale)
//   - reactive_live_nodes: Gauge of live nodes by kind
//   - reactive_live_owners: Gauge of live ownership scopes
//   - reactive_propagation_flush_seconds: Histogram of write-to-effects
//     flush duration
type Collector struct {
	signalWrites   prometheus.Counter
	memoRecomputes *prometheus.CounterVec
	effectRuns     prometheus.Counter
	asyncLoads     *prometheus.CounterVec
	liveNodes      *prometheus.GaugeVec
	liveOwners     prometheus.Gauge
	flushDuration  prometheus.Histogram

	tracer trace.Tracer
}

// New creates a Collector without installing it. Most callers want
// Install instead.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		signalWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Total number of signal writes",
			ConstLabels: config.ConstLabels,
		}),

		memoRecomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_recomputes_total",
			Help:        "Total number of memo computations",
			ConstLabels: config.ConstLabels,
		}, []string{"changed"}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect executions",
			ConstLabels: config.ConstLabels,
		}),

		asyncLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_loads_total",
			Help:        "Total number of async evaluations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		liveNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_nodes",
			Help:        "Number of live reactive nodes by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		liveOwners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_owners",
			Help:        "Number of live ownership scopes",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_flush_seconds",
			Help:        "Duration of write propagation waves in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		tracer: otel.Tracer(config.TracerName),
	}
}

// Install creates a Collector and registers it as the engine's event
// sink. Call once, before constructing nodes.
func Install(opts ...Option) *Collector {
	c := New(opts...)
	reactive.SetInstruments(c)
	return c
}

// NodeCreated implements reactive.Instruments.
func (c *Collector) NodeCreated(kind string) {
	c.liveNodes.WithLabelValues(kind).Inc()
}

// NodeDisposed implements reactive.Instruments.
func (c *Collector) NodeDisposed(kind string) {
	c.liveNodes.WithLabelValues(kind).Dec()
}

// OwnerCreated implements reactive.Instruments.
func (c *Collector) OwnerCreated() {
	c.liveOwners.Inc()
}

// OwnerDisposed implements reactive.Instruments.
func (c *Collector) OwnerDisposed() {
	c.liveOwners.Dec()
}

// SignalWrite implements reactive.Instruments.
func (c *Collector) SignalWrite() {
	c.signalWrites.Inc()
}

// MemoRecompute implements reactive.Instruments.
func (c *Collector) MemoRecompute(changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	c.memoRecomputes.WithLabelValues(label).Inc()
}

// EffectRun implements reactive.Instruments.
func (c *Collector) EffectRun() {
	c.effectRuns.Inc()
}

// PropagationFlush implements reactive.Instruments.
func (c *Collector) PropagationFlush(d time.Duration, effects int) {
	c.flushDuration.Observe(d.Seconds())
}

// AsyncLoadStart implements reactive.Instruments. Each evaluation gets a
// span; the span status records errors and a superseded result is
// labelled stale.
func (c *Collector) AsyncLoadStart(name string, version uint64) func(stale bool, err error) {
	_, span := c.tracer.Start(
		context.Background(),
		"reactive.async_load",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("reactive.node", name),
			attribute.Int64("reactive.version", int64(version)),
		),
	)

	return func(stale bool, err error) {
		defer span.End()

		result := "ok"
		switch {
		case stale:
			result = "stale"
			span.SetAttributes(attribute.Bool("reactive.stale", true))
			span.SetStatus(codes.Ok, "")
		case err != nil:
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}
		c.asyncLoads.WithLabelValues(result).Inc()
	}
}
