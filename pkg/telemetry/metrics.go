// Package telemetry exports reconciler and pipe statistics to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/reconcile"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vprompt").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass and pump durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
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
		Namespace: "vprompt",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects reconcile and pump statistics. It implements
// reconcile.Observer.
//
// Metrics collected:
//   - vprompt_reconcile_total: Counter of passes by status
//   - vprompt_reconcile_duration_seconds: Histogram of pass durations
//   - vprompt_reconcile_nodes: Gauge of nodes in the last committed pass
//   - vprompt_components_invoked_total: Counter of component invocations
//   - vprompt_pump_total: Counter of pumps by pipe and status
//   - vprompt_pump_duration_seconds: Histogram of pump durations by pipe
//   - vprompt_pump_deliveries_total: Counter of consumer deliveries by pipe
//
// Example:
//
//	m := telemetry.New(telemetry.WithNamespace("agent"))
//	rec := reconcile.New(root, reconcile.WithObserver(m))
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	passesTotal     *prometheus.CounterVec
	passDuration    prometheus.Histogram
	nodes           prometheus.Gauge
	invokedTotal    prometheus.Counter
	pumpsTotal      *prometheus.CounterVec
	pumpDuration    *prometheus.HistogramVec
	deliveriesTotal *prometheus.CounterVec
}

var _ reconcile.Observer = (*Metrics)(nil)

// New registers the metrics with the configured registry.
func New(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		passesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_total",
			Help:        "Total number of reconciliation passes",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_duration_seconds",
			Help:        "Reconciliation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_nodes",
			Help:        "Number of nodes in the last committed tree",
			ConstLabels: config.ConstLabels,
		}),

		invokedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "components_invoked_total",
			Help:        "Total number of component invocations in committed passes",
			ConstLabels: config.ConstLabels,
		}),

		pumpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pump_total",
			Help:        "Total number of data pumps",
			ConstLabels: config.ConstLabels,
		}, []string{"pipe", "status"}),

		pumpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pump_duration_seconds",
			Help:        "Data pump duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"pipe"}),

		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pump_deliveries_total",
			Help:        "Total number of values delivered to data consumers",
			ConstLabels: config.ConstLabels,
		}, []string{"pipe"}),
	}
}

// ObserveReconcile implements reconcile.Observer.
func (m *Metrics) ObserveReconcile(stats reconcile.ReconcileStats) {
	status := categorizeError(stats.Err)
	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(stats.Duration.Seconds())
	if stats.Err == nil {
		m.nodes.Set(float64(stats.Nodes))
		m.invokedTotal.Add(float64(stats.Invoked))
	}
}

// ObservePump implements reconcile.Observer.
func (m *Metrics) ObservePump(stats reconcile.PumpStats) {
	m.pumpsTotal.WithLabelValues(stats.Pipe, categorizeError(stats.Err)).Inc()
	m.pumpDuration.WithLabelValues(stats.Pipe).Observe(stats.Duration.Seconds())
	m.deliveriesTotal.WithLabelValues(stats.Pipe).Add(float64(stats.Delivered))
}

// categorizeError maps an error to a low-cardinality status label.
func categorizeError(err error) string {
	var (
		dupErr    *reconcile.DuplicateKeyError
		orderErr  *hooks.HookOrderError
		renderErr *reconcile.RenderError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, reconcile.ErrNoTree):
		return "no_tree"
	case errors.As(err, &dupErr):
		return "duplicate_keys"
	case errors.As(err, &orderErr):
		return "hook_order"
	case errors.As(err, &renderErr):
		return "render_error"
	default:
		return "error"
	}
}

// Handler serves the metrics of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
