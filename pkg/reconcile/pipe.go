package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Pipe pumps external values into the data hooks of a Reconciler's
// committed tree. Pipes are independent of each other.
type Pipe struct {
	name  string
	r     *Reconciler
	pumps atomic.Uint64
}

// CreatePipe returns a new Pipe. Without a name the pipe is called
// "pipe-N" with N counting the reconciler's pipes from 1.
func (r *Reconciler) CreatePipe(name ...string) *Pipe {
	seq := r.pipeSeq.Add(1)
	n := fmt.Sprintf("pipe-%d", seq)
	if len(name) > 0 && name[0] != "" {
		n = name[0]
	}
	return &Pipe{name: n, r: r}
}

// Name returns the pipe name.
func (p *Pipe) Name() string {
	return p.name
}

// Pumps returns how many pumps completed without error.
func (p *Pipe) Pumps() uint64 {
	return p.pumps.Load()
}

// Pump delivers value to every subscription of the last committed tree
// whose type accepts it. Stores are dispatched in parallel and Pump
// returns once all consumers finished, with the first consumer error.
//
// State changes made by consumers take effect on the next Reconcile.
func (p *Pipe) Pump(ctx context.Context, value any) error {
	r := p.r
	ctx, span := r.cfg.tracer.Start(ctx, "vprompt.pump")
	defer span.End()
	span.SetAttributes(attribute.String("vprompt.pipe", p.name))

	start := time.Now()
	stats := PumpStats{Pipe: p.name}
	defer func() {
		stats.Duration = time.Since(start)
		if r.cfg.observer != nil {
			r.cfg.observer.ObservePump(stats)
		}
	}()

	stores, err := r.subscribedStores()
	if err != nil {
		err = fmt.Errorf("pipe %s: %w", p.name, err)
		stats.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	stats.Stores = len(stores)

	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	for _, s := range stores {
		g.Go(func() error {
			n, err := s.Dispatch(ctx, value)
			delivered.Add(int64(n))
			return err
		})
	}
	err = g.Wait()
	stats.Delivered = int(delivered.Load())
	span.SetAttributes(
		attribute.Int("vprompt.stores", stats.Stores),
		attribute.Int("vprompt.delivered", stats.Delivered),
	)

	if err != nil {
		err = fmt.Errorf("pipe %s: %w", p.name, err)
		stats.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.cfg.logger.Warn("pump failed", "pipe", p.name, "error", err)
		return err
	}
	p.pumps.Add(1)
	r.cfg.logger.Debug("pump delivered", "pipe", p.name, "stores", stats.Stores, "delivered", stats.Delivered)
	return nil
}
