package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/ptree"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PassInfo describes the last committed pass.
type PassInfo struct {
	Seq      uint64
	Duration time.Duration
	Nodes    int
	Invoked  int
}

// node is a Render Node of a committed or in-progress tree. Component
// nodes own a Store; a Store outlives the node structs of single passes
// for as long as the node keeps its identity.
type node struct {
	el       *ptree.Element
	path     string
	store    *hooks.Store
	output   *ptree.Element // Last render output, component nodes only
	children []*node
}

// Reconciler renders one declared tree repeatedly, keeping hook state for
// nodes whose identity holds between passes.
type Reconciler struct {
	root *ptree.Element
	cfg  config

	// passMu serializes passes; mu guards the committed state.
	passMu sync.Mutex
	mu     sync.RWMutex
	tree   *node
	snap   *snapshot.Node
	last   PassInfo

	passSeq atomic.Uint64
	pipeSeq atomic.Uint64
}

// New creates a Reconciler for root. A nil root is allowed: Reconcile then
// returns nil and pumps fail with ErrNoTree.
func New(root *ptree.Element, opts ...Option) *Reconciler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reconciler{root: root, cfg: cfg}
}

// Snapshot returns the snapshot of the last committed pass, or nil.
func (r *Reconciler) Snapshot() *snapshot.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// LastPass returns information about the last committed pass.
func (r *Reconciler) LastPass() PassInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Reconcile renders the tree and returns its snapshot.
//
// The first call invokes every component. Later calls invoke a component
// only when it is new, its Store changed, or its parent was invoked; other
// components reuse their previous output.
//
// ctx is checked before every node. When it is done the pass is abandoned
// without committing anything and the error wraps ctx.Err(). Nothing is
// committed either when the pass fails with a *DuplicateKeyError or a
// *RenderError. An abandoned pass aborts every render it started, so state
// a component set on itself during the pass is rolled back.
func (r *Reconciler) Reconcile(ctx context.Context) (*snapshot.Node, error) {
	if r.root == nil {
		return nil, nil
	}

	r.passMu.Lock()
	defer r.passMu.Unlock()

	seq := r.passSeq.Add(1)
	ctx, span := r.cfg.tracer.Start(ctx, "vprompt.reconcile")
	defer span.End()
	span.SetAttributes(attribute.Int64("vprompt.pass", int64(seq)))

	start := time.Now()
	r.mu.RLock()
	prev := r.tree
	r.mu.RUnlock()

	p := &pass{ctx: ctx, clock: r.cfg.clock}
	var prevRoot *node
	if prev != nil && ptree.SameType(prev.el, r.root) && prev.el.HasKey == r.root.HasKey && prev.el.Key == r.root.Key {
		prevRoot = prev
	}
	next, err := p.reconcileNode(r.root, prevRoot, false, r.root.Name())
	duration := time.Since(start)

	stats := ReconcileStats{Duration: duration, Nodes: p.nodes, Invoked: len(p.invoked), Err: err}
	span.SetAttributes(
		attribute.Int("vprompt.nodes", p.nodes),
		attribute.Int("vprompt.invoked", len(p.invoked)),
	)

	if err != nil {
		for _, st := range p.begun {
			st.Abort()
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = fmt.Errorf("reconcile cancelled: %w", err)
			r.cfg.logger.Debug("reconcile cancelled", "pass", seq, "nodes", p.nodes)
		} else {
			r.cfg.logger.Debug("reconcile failed", "pass", seq, "error", err)
		}
		stats.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.observe(stats)
		return nil, err
	}

	snap := r.commit(next, prev, p, PassInfo{Seq: seq, Duration: duration, Nodes: p.nodes, Invoked: len(p.invoked)})
	r.cfg.logger.Debug("reconcile committed",
		"pass", seq,
		"nodes", p.nodes,
		"invoked", len(p.invoked),
		"duration", duration,
	)
	r.observe(stats)

	for _, fn := range r.cfg.onCommit {
		fn(snap)
	}
	return snap, nil
}

func (r *Reconciler) observe(stats ReconcileStats) {
	if r.cfg.observer != nil {
		r.cfg.observer.ObserveReconcile(stats)
	}
}

// commit makes next the committed tree, disposes the stores that did not
// survive and builds the snapshot.
func (r *Reconciler) commit(next, prev *node, p *pass, info PassInfo) *snapshot.Node {
	for _, n := range p.invoked {
		n.store.Commit()
	}

	alive := make(map[*hooks.Store]struct{})
	walkNodes(next, func(n *node) {
		if n.store != nil {
			alive[n.store] = struct{}{}
		}
	})
	walkNodes(prev, func(n *node) {
		if n.store == nil {
			return
		}
		if _, ok := alive[n.store]; !ok {
			n.store.Dispose()
		}
	})

	snap := buildSnapshot(next)

	r.mu.Lock()
	r.tree = next
	r.snap = snap
	r.last = info
	r.mu.Unlock()

	return snap
}

// subscribedStores returns the stores of the committed tree that have at
// least one subscription.
func (r *Reconciler) subscribedStores() ([]*hooks.Store, error) {
	r.mu.RLock()
	tree := r.tree
	r.mu.RUnlock()

	if tree == nil {
		return nil, ErrNoTree
	}
	var stores []*hooks.Store
	walkNodes(tree, func(n *node) {
		if n.store != nil && n.store.SubscriptionCount() > 0 {
			stores = append(stores, n.store)
		}
	})
	return stores, nil
}

// pass holds the state of one reconciliation pass.
type pass struct {
	ctx     context.Context
	clock   hooks.Clock
	nodes   int
	invoked []*node
	begun   []*hooks.Store // every store whose render started, for Abort
}

// reconcileNode builds the node for el. prev is the matched node of the
// previous tree, or nil. force is true when el comes from a fresh render
// of its parent.
func (p *pass) reconcileNode(el *ptree.Element, prev *node, force bool, path string) (*node, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}
	p.nodes++

	n := &node{el: el, path: path}
	switch el.Kind {
	case ptree.KindText:
		return n, nil

	case ptree.KindFragment, ptree.KindChunk:
		children, err := p.reconcileChildren(el.Children, childrenOf(prev), force, path)
		if err != nil {
			return nil, err
		}
		n.children = children
		return n, nil

	case ptree.KindComponent:
		return p.reconcileComponent(n, prev, force)

	default:
		return nil, fmt.Errorf("reconcile: unknown element kind %d at %s", el.Kind, path)
	}
}

func (p *pass) reconcileComponent(n *node, prev *node, force bool) (*node, error) {
	if prev != nil {
		n.store = prev.store
	} else {
		n.store = hooks.NewStore(p.clock)
	}

	invoke := prev == nil || force || n.store.HasChanged()
	if invoke {
		out, err := p.invoke(n)
		if err != nil {
			return nil, err
		}
		n.output = out
		p.invoked = append(p.invoked, n)
	} else {
		n.output = prev.output
	}

	var out []*ptree.Element
	if n.output != nil {
		out = []*ptree.Element{n.output}
	}
	children, err := p.reconcileChildren(out, childrenOf(prev), invoke, n.path)
	if err != nil {
		return nil, err
	}
	n.children = children
	return n, nil
}

// invoke runs the component's render function inside its Store's render
// bracket. Panics become *RenderError.
func (p *pass) invoke(n *node) (out *ptree.Element, err error) {
	s := n.store
	p.begun = append(p.begun, s)
	s.BeginRender()
	defer func() {
		if rec := recover(); rec != nil {
			_ = s.EndRender()
			out = nil
			err = &RenderError{Component: n.el.Name(), Path: n.path, Panic: rec}
		}
	}()

	out = n.el.Comp.Render(s, n.el.RenderProps())
	if endErr := s.EndRender(); endErr != nil {
		return nil, &RenderError{Component: n.el.Name(), Path: n.path, Err: endErr}
	}
	return out, nil
}

// reconcileChildren matches els against the previous children: keyed
// elements by key, unkeyed elements by index, both only when the type
// identity is unchanged.
func (p *pass) reconcileChildren(els []*ptree.Element, prev []*node, force bool, parentPath string) ([]*node, error) {
	if len(els) == 0 {
		return nil, nil
	}
	if err := checkKeys(els, parentPath); err != nil {
		return nil, err
	}

	prevKeyed := make(map[string]*node)
	prevPositional := make(map[int]*node)
	for i, c := range prev {
		if c.el.HasKey {
			prevKeyed[c.el.Key] = c
		} else {
			prevPositional[i] = c
		}
	}

	children := make([]*node, 0, len(els))
	for i, el := range els {
		var match *node
		if el.HasKey {
			match = prevKeyed[el.Key]
		} else {
			match = prevPositional[i]
		}
		if match != nil && !ptree.SameType(match.el, el) {
			match = nil
		}

		seg := snapshot.Segment(i, len(els), el.Key, el.HasKey)
		child, err := p.reconcileNode(el, match, force, snapshot.ChildPath(parentPath, seg, el.Name()))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// checkKeys fails with every duplicated key of one sibling list.
func checkKeys(els []*ptree.Element, parentPath string) error {
	seen := make(map[string]int)
	for _, el := range els {
		if el.HasKey {
			seen[el.Key]++
		}
	}
	var dups []string
	for key, count := range seen {
		if count > 1 {
			dups = append(dups, key)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	return &DuplicateKeyError{Path: parentPath, Keys: dups}
}

func childrenOf(n *node) []*node {
	if n == nil {
		return nil
	}
	return n.children
}

func walkNodes(n *node, fn func(*node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.children {
		walkNodes(c, fn)
	}
}

// buildSnapshot converts a committed tree. It drains each store's
// update-data time, so every pass reports the time spent since the
// previous one.
func buildSnapshot(n *node) *snapshot.Node {
	if n == nil {
		return nil
	}
	el := n.el
	out := &snapshot.Node{
		Name:   el.Name(),
		Path:   n.path,
		Key:    el.Key,
		Keyed:  el.HasKey,
		Weight: el.Weight,
		Chunk:  el.Kind == ptree.KindChunk,
	}
	if el.Kind == ptree.KindText {
		text := el.Text
		out.Value = &text
	}
	if len(el.Props) > 0 {
		out.Props = make(map[string]any, len(el.Props))
		for k, v := range el.Props {
			out.Props[k] = v
		}
	}
	if n.store != nil {
		out.Statistics = snapshot.Statistics{
			UpdateDataTime: n.store.TakeUpdateDataTime(),
			Renders:        n.store.Renders(),
		}
	}
	if len(n.children) > 0 {
		out.Children = make([]*snapshot.Node, len(n.children))
		for i, c := range n.children {
			out.Children[i] = buildSnapshot(c)
		}
	}
	return out
}
