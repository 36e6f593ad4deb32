package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/harness"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vharness").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: a new registry per Metrics, so harnesses in parallel tests
	// never collide.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vharness",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics collects Prometheus metrics for a harness. It is both a
// dispatch middleware and a render event subscriber:
//
//	m := middleware.Prometheus(middleware.WithRegistry(reg))
//	h := harness.New(eng, harness.WithMiddleware(m), harness.WithSubscriber(m))
//
// Metrics collected:
//   - vharness_dispatch_total: dispatches by kind and status
//   - vharness_dispatch_duration_seconds: dispatch duration by kind
//   - vharness_unhandled_errors_total: failed dispatches by error type
//   - vharness_render_events_total: published render events
//   - vharness_components_rendered_total: component renders
//   - vharness_components_disposed_total: component disposals
type Metrics struct {
	registry prometheus.Registerer

	dispatchTotal      *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
	unhandledErrors    *prometheus.CounterVec
	renderEvents       prometheus.Counter
	componentsRendered prometheus.Counter
	componentsDisposed prometheus.Counter
}

// Prometheus creates the metrics middleware and registers its collectors.
// It panics if the collectors are already registered on the registry.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_total",
			Help:        "Total number of dispatched callbacks",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Dispatched callback duration in seconds, including the render pass",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		unhandledErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "unhandled_errors_total",
			Help:        "Total number of failed dispatches by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		renderEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_events_total",
			Help:        "Total number of render events published",
			ConstLabels: config.ConstLabels,
		}),

		componentsRendered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "components_rendered_total",
			Help:        "Total number of component renders",
			ConstLabels: config.ConstLabels,
		}),

		componentsDisposed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "components_disposed_total",
			Help:        "Total number of component disposals",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Registry returns the registerer the collectors were registered on.
func (m *Metrics) Registry() prometheus.Registerer {
	return m.registry
}

// Handle implements harness.Middleware.
func (m *Metrics) Handle(ctx context.Context, d *harness.Dispatch, next func(context.Context) error) error {
	kind := d.Kind.String()
	start := time.Now()

	err := next(ctx)

	m.dispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
		m.unhandledErrors.WithLabelValues(categorizeError(err)).Inc()
	}
	m.dispatchTotal.WithLabelValues(kind, status).Inc()
	return err
}

// OnRender implements harness.Subscriber.
func (m *Metrics) OnRender(e *harness.RenderEvent) {
	m.renderEvents.Inc()
	m.componentsRendered.Add(float64(len(e.Batch.UpdatedComponents)))
	m.componentsDisposed.Add(float64(len(e.Batch.DisposedComponents)))
}

// OnCompleted implements harness.Subscriber.
func (m *Metrics) OnCompleted() {}

// categorizeError returns a low-cardinality label for a dispatch failure.
func categorizeError(err error) string {
	var ue *harness.UnhandledRenderError
	if errors.As(err, &ue) && ue.Panic != nil {
		return "panic"
	}
	switch {
	case errors.Is(err, engine.ErrUnknownHandler):
		return "unknown_handler"
	case errors.Is(err, engine.ErrUnknownComponent):
		return "unknown_component"
	case errors.Is(err, engine.ErrDisposed):
		return "disposed"
	case errors.Is(err, harness.ErrInvalidOperation):
		return "invalid_operation"
	default:
		return "error"
	}
}
