package reconcile

import (
	"log/slog"
	"time"

	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for reconciler spans.
const defaultTracerName = "github.com/vango-dev/vprompt/reconcile"

// ReconcileStats describes one reconciliation pass.
type ReconcileStats struct {
	Duration time.Duration
	Nodes    int
	Invoked  int
	Err      error
}

// PumpStats describes one pump.
type PumpStats struct {
	Pipe      string
	Duration  time.Duration
	Stores    int
	Delivered int
	Err       error
}

// Observer receives pass and pump statistics. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveReconcile(ReconcileStats)
	ObservePump(PumpStats)
}

// Option configures a Reconciler.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
	clock    hooks.Clock
	onCommit []func(*snapshot.Node)
}

func defaultConfig() config {
	return config{
		logger: slog.Default(),
		tracer: otel.Tracer(defaultTracerName),
		clock:  time.Now,
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for reconcile and pump spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithObserver sets the statistics observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithClock sets the clock stores use to time data dispatch.
func WithClock(clock hooks.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCommitHook registers fn to run with the snapshot of every committed
// pass, after the reconciler released its locks.
func WithCommitHook(fn func(*snapshot.Node)) Option {
	return func(c *config) {
		if fn != nil {
			c.onCommit = append(c.onCommit, fn)
		}
	}
}
