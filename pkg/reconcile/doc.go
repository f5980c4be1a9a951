// Package reconcile turns a declared prompt tree into a rendered tree,
// preserving component state across passes.
//
// A Reconciler owns one root element. Each call to Reconcile walks the
// tree, invokes the components that need it and commits a new tree whose
// snapshot is returned. Components keep their hook Store while their
// identity holds: same key, or same position for unkeyed siblings, and
// the same component type.
//
// Pipes feed external values into the data hooks of the committed tree:
//
//	r := reconcile.New(ptree.Create(App, nil))
//	if _, err := r.Reconcile(ctx); err != nil {
//	    return err
//	}
//	files := r.CreatePipe("files")
//	if err := files.Pump(ctx, []string{"a.go"}); err != nil {
//	    return err
//	}
//	snap, err := r.Reconcile(ctx)
package reconcile
