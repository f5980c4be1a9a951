// Package hooks provides the per-component storage used by prompt components.
//
// Every component Render Node owns exactly one Store. A Store holds two kinds
// of hooks:
//
//   - State cells, created by UseState and addressed by call order. The
//     first UseState call of a render is slot 0, the second slot 1, and so on.
//     Components must call their hooks in the same order on every render.
//   - Data subscriptions, registered by UseData. A subscription pairs a
//     runtime type check with a consumer. Values pushed through a data pipe
//     are delivered to every subscription whose check accepts them.
//
// # Usage
//
//	var Counter = ptree.Define("Counter", func(s *hooks.Store, props ptree.Props) *ptree.Element {
//	    count, setCount := hooks.UseState(s, 0)
//	    hooks.UseData(s, func(ctx context.Context, delta int) error {
//	        setCount.Update(func(prev int) int { return prev + delta })
//	        return nil
//	    })
//	    return ptree.Text(count)
//	})
//
// # Render Lifecycle
//
// The reconciler brackets each component invocation with BeginRender and
// EndRender, and calls Commit once the whole pass succeeded. Subscriptions
// registered during a render only become visible to pumps after Commit. A
// cancelled or failed pass calls Abort instead, which drops them and undoes
// the state the render wrote through its own setters.
//
// Every setter call marks the Store changed, including calls made while a
// render runs, so an update racing a render is picked up by the next pass.
//
// # Concurrency
//
// A Store is guarded by its own mutex. Setters and Dispatch may be called from
// any goroutine.
package hooks
