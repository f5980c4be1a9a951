package ptest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/vprompt/pkg/ptree"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/render"
	"github.com/vango-dev/vprompt/pkg/snapshot"
)

// defaultPipe is the pipe used by Harness.Pump.
const defaultPipe = "test"

// Harness drives a reconciler from a test.
type Harness struct {
	t     testing.TB
	ctx   context.Context
	rec   *reconcile.Reconciler
	pipes map[string]*reconcile.Pipe
}

// New creates a harness for root and runs the first pass.
//
// Example:
//
//	h := ptest.New(t, ptree.Create(App, nil))
func New(t testing.TB, root *ptree.Element, opts ...reconcile.Option) *Harness {
	t.Helper()
	h := &Harness{
		t:     t,
		ctx:   context.Background(),
		rec:   reconcile.New(root, opts...),
		pipes: make(map[string]*reconcile.Pipe),
	}
	h.Reconcile()
	return h
}

// Reconciler returns the underlying reconciler.
func (h *Harness) Reconciler() *reconcile.Reconciler {
	return h.rec
}

// Reconcile runs a pass and fails the test on error.
func (h *Harness) Reconcile() *snapshot.Node {
	h.t.Helper()
	snap, err := h.rec.Reconcile(h.ctx)
	if err != nil {
		h.t.Fatalf("Reconcile() error = %v", err)
	}
	return snap
}

// Pump pumps value through the harness's default pipe.
func (h *Harness) Pump(value any) *Harness {
	h.t.Helper()
	return h.PumpVia(defaultPipe, value)
}

// PumpVia pumps value through the named pipe, creating it on first use.
//
// Example:
//
//	h.PumpVia("files", []string{"a.go"}).PumpVia("query", "main")
func (h *Harness) PumpVia(pipe string, value any) *Harness {
	h.t.Helper()
	p, ok := h.pipes[pipe]
	if !ok {
		p = h.rec.CreatePipe(pipe)
		h.pipes[pipe] = p
	}
	if err := p.Pump(h.ctx, value); err != nil {
		h.t.Fatalf("Pump(%s) error = %v", pipe, err)
	}
	return h
}

// Prompt reconciles and returns the rendered prompt text.
func (h *Harness) Prompt() string {
	h.t.Helper()
	return RenderToString(h.Reconcile())
}

// RenderToString renders snap without a token budget.
func RenderToString(snap *snapshot.Node) string {
	r := render.NewRenderer(render.RendererConfig{})
	text, err := r.RenderToString(snap)
	if err != nil {
		return ""
	}
	return text
}

// ExpectValues asserts that the leaves matched by path have exactly the
// given texts, in order.
//
// Example:
//
//	ptest.ExpectValues(t, snap, "f[*].Text", "a", "b")
func ExpectValues(t testing.TB, snap *snapshot.Node, path string, want ...string) {
	t.Helper()
	got := snapshot.QueryValues(snap, path)
	if len(want) == 0 {
		want = nil
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values at %s mismatch (-want +got):\n%s", path, diff)
	}
}

// ExpectValue asserts that path matches exactly one leaf with text want.
func ExpectValue(t testing.TB, snap *snapshot.Node, path, want string) {
	t.Helper()
	nodes := snapshot.Query(snap, path)
	if len(nodes) != 1 {
		t.Errorf("expected one node at %s, got %d", path, len(nodes))
		return
	}
	if !nodes[0].IsLeaf() {
		t.Errorf("node at %s is a %s, not a text leaf", path, nodes[0].Name)
		return
	}
	if got := nodes[0].Text(); got != want {
		t.Errorf("value at %s = %q, want %q", path, got, want)
	}
}

// ExpectNoNode asserts that path matches nothing.
func ExpectNoNode(t testing.TB, snap *snapshot.Node, path string) {
	t.Helper()
	if nodes := snapshot.Query(snap, path); len(nodes) > 0 {
		t.Errorf("expected no node at %s, found %d", path, len(nodes))
	}
}

// ExpectUniquePaths asserts that every path of snap is distinct and
// resolves back to its own node.
func ExpectUniquePaths(t testing.TB, snap *snapshot.Node) {
	t.Helper()
	seen := make(map[string]bool)
	snapshot.Walk(snap, func(n *snapshot.Node) bool {
		if seen[n.Path] {
			t.Errorf("duplicate path %s", n.Path)
		}
		seen[n.Path] = true
		if found := snapshot.Find(snap, n.Path); found != n {
			t.Errorf("path %s does not resolve to its node", n.Path)
		}
		return true
	})
}

// ExpectPromptContains asserts that the rendered prompt contains expected.
func ExpectPromptContains(t testing.TB, snap *snapshot.Node, expected string) {
	t.Helper()
	text := RenderToString(snap)
	if !strings.Contains(text, expected) {
		t.Errorf("expected prompt to contain %q, got:\n%s", expected, truncate(text, 500))
	}
}

// ExpectPromptNotContains asserts that the rendered prompt does not
// contain unexpected.
func ExpectPromptNotContains(t testing.TB, snap *snapshot.Node, unexpected string) {
	t.Helper()
	text := RenderToString(snap)
	if strings.Contains(text, unexpected) {
		t.Errorf("expected prompt to NOT contain %q, got:\n%s", unexpected, truncate(text, 500))
	}
}

// ExpectDuplicateKeys asserts that err reports exactly the given
// duplicated keys.
func ExpectDuplicateKeys(t testing.TB, err error, keys ...string) {
	t.Helper()
	var dupErr *reconcile.DuplicateKeyError
	if !errors.As(err, &dupErr) {
		t.Errorf("expected *reconcile.DuplicateKeyError, got %v", err)
		return
	}
	if diff := cmp.Diff(keys, dupErr.Keys); diff != "" {
		t.Errorf("duplicate keys mismatch (-want +got):\n%s", diff)
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
