package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/ptree"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"github.com/vango-dev/vprompt/pkg/tokenizer"
)

func text(path, value string) *snapshot.Node {
	return &snapshot.Node{Name: "Text", Path: path, Value: &value}
}

func weighted(w float64, n *snapshot.Node) *snapshot.Node {
	n.Weight = &w
	return n
}

func chunk(path string, children ...*snapshot.Node) *snapshot.Node {
	return &snapshot.Node{Name: "Chunk", Path: path, Chunk: true, Children: children}
}

func fragment(path string, children ...*snapshot.Node) *snapshot.Node {
	return &snapshot.Node{Name: "f", Path: path, Children: children}
}

// sample renders to "aaaabbbbccccdddd": four tokens with the approximate
// tokenizer, one unit per leaf except the chunk.
func sample() *snapshot.Node {
	return fragment("f",
		text("f[0].Text", "aaaa"),
		weighted(0.5, text("f[1].Text", "bbbb")),
		weighted(2, chunk("f[2].Chunk",
			text("f[2].Chunk[0].Text", "cccc"),
			text("f[2].Chunk[1].Text", "dddd"),
		)),
	)
}

func TestRenderWithoutBudget(t *testing.T) {
	renderer := NewRenderer(RendererConfig{})
	prompt, err := renderer.Render(sample())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if prompt.Text != "aaaabbbbccccdddd" {
		t.Errorf("Text = %q, want %q", prompt.Text, "aaaabbbbccccdddd")
	}
	if prompt.Tokens != 4 {
		t.Errorf("Tokens = %d, want 4", prompt.Tokens)
	}
	if len(prompt.Elided) != 0 {
		t.Errorf("Elided = %v, want none", prompt.Elided)
	}
	if prompt.Metadata.RenderID == uuid.Nil {
		t.Error("RenderID is nil")
	}
}

func TestRenderElision(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		want      string
		elided    []string
	}{
		{"fits", 4, "aaaabbbbccccdddd", nil},
		{"drops lowest weight", 3, "aaaaccccdddd", []string{"f[1].Text"}},
		{"keeps chunk whole", 2, "ccccdddd", []string{"f[0].Text", "f[1].Text"}},
		{"drops chunk as unit", 1, "", []string{"f[0].Text", "f[1].Text", "f[2].Chunk[0].Text", "f[2].Chunk[1].Text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := NewRenderer(RendererConfig{MaxTokens: tt.maxTokens})
			prompt, err := renderer.Render(sample())
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if prompt.Text != tt.want {
				t.Errorf("Text = %q, want %q", prompt.Text, tt.want)
			}
			var elided []string
			for _, l := range prompt.Elided {
				elided = append(elided, l.Path)
			}
			if diff := cmp.Diff(tt.elided, elided); diff != "" {
				t.Errorf("Elided mismatch (-want +got):\n%s", diff)
			}
			if prompt.Tokens > tt.maxTokens {
				t.Errorf("Tokens = %d, exceeds %d", prompt.Tokens, tt.maxTokens)
			}
		})
	}
}

func TestRenderElisionTiesDropLaterFirst(t *testing.T) {
	snap := fragment("f",
		text("f[0].Text", "aaaa"),
		text("f[1].Text", "bbbb"),
		text("f[2].Text", "cccc"),
	)
	renderer := NewRenderer(RendererConfig{MaxTokens: 1})
	got, err := renderer.RenderToString(snap)
	if err != nil {
		t.Fatalf("RenderToString() error = %v", err)
	}
	if got != "aaaa" {
		t.Errorf("got %q, want %q", got, "aaaa")
	}
}

// countingTokenizer counts TokenLength calls.
type countingTokenizer struct {
	*tokenizer.Approx
	calls int
}

func (c *countingTokenizer) TokenLength(text string) int {
	c.calls++
	return c.Approx.TokenLength(text)
}

func TestRenderElisionTokenizesLogarithmically(t *testing.T) {
	const units, budget = 256, 100
	var children []*snapshot.Node
	for i := 0; i < units; i++ {
		children = append(children, text(fmt.Sprintf("f[%d].Text", i), "aaaa"))
	}
	tk := &countingTokenizer{Approx: tokenizer.NewApprox()}
	renderer := NewRenderer(RendererConfig{MaxTokens: budget, Tokenizer: tk})

	prompt, err := renderer.Render(fragment("f", children...))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if prompt.Text != strings.Repeat("aaaa", budget) {
		t.Errorf("Text has %d tokens, want the first %d leaves", prompt.Tokens, budget)
	}
	if len(prompt.Elided) != units-budget {
		t.Errorf("Elided = %d leaves, want %d", len(prompt.Elided), units-budget)
	}
	if prompt.Elided[0].Path != fmt.Sprintf("f[%d].Text", budget) {
		t.Errorf("first elided = %s", prompt.Elided[0].Path)
	}
	// Bisection over 256 drop counts plus the final count.
	if tk.calls > 12 {
		t.Errorf("TokenLength called %d times, want at most 12", tk.calls)
	}
}

func TestRenderWeightsMultiply(t *testing.T) {
	snap := fragment("f",
		weighted(0.25, fragment("f[0].f", weighted(8, text("f[0].f.Text", "aaaa")))),
		weighted(3, text("f[1].Text", "bbbb")),
	)
	renderer := NewRenderer(RendererConfig{MaxTokens: 1})
	prompt, err := renderer.Render(snap)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	// 0.25 * 8 = 2 < 3, so the first leaf goes.
	if prompt.Text != "bbbb" {
		t.Errorf("Text = %q, want bbbb", prompt.Text)
	}
	if len(prompt.Elided) != 1 || prompt.Elided[0].Weight != 2 {
		t.Errorf("Elided = %+v, want one leaf with weight 2", prompt.Elided)
	}
}

func TestRenderSeparator(t *testing.T) {
	renderer := NewRenderer(RendererConfig{Separator: "\n"})
	var buf bytes.Buffer
	if err := renderer.RenderToWriter(&buf, sample()); err != nil {
		t.Fatalf("RenderToWriter() error = %v", err)
	}
	if got, want := buf.String(), "aaaa\nbbbb\ncccc\ndddd"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderNilSnapshot(t *testing.T) {
	prompt, err := NewRenderer(RendererConfig{}).Render(nil)
	if err != nil {
		t.Fatalf("Render(nil) error = %v", err)
	}
	if prompt.Text != "" || prompt.Tokens != 0 {
		t.Errorf("Render(nil) = %q (%d tokens), want empty", prompt.Text, prompt.Tokens)
	}
}

func TestRenderNegativeBudget(t *testing.T) {
	_, err := NewRenderer(RendererConfig{MaxTokens: -1}).Render(sample())
	if !errors.Is(err, ErrInvalidBudget) {
		t.Errorf("Render() error = %v, want ErrInvalidBudget", err)
	}
}

func TestRenderCollectsStatistics(t *testing.T) {
	snap := fragment("f", &snapshot.Node{
		Name:       "Comp",
		Path:       "f.Comp",
		Children:   []*snapshot.Node{text("f.Comp.Text", "x")},
		Statistics: snapshot.Statistics{Renders: 2, UpdateDataTime: 3 * time.Millisecond},
	})

	prompt, err := NewRenderer(RendererConfig{}).Render(snap)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := []ComponentStatistics{{Path: "f.Comp", Name: "Comp", Renders: 2, UpdateDataTime: 3 * time.Millisecond}}
	if diff := cmp.Diff(want, prompt.Metadata.Components); diff != "" {
		t.Errorf("Components mismatch (-want +got):\n%s", diff)
	}
	if prompt.Metadata.UpdateDataTime != 3*time.Millisecond {
		t.Errorf("UpdateDataTime = %v, want 3ms", prompt.Metadata.UpdateDataTime)
	}
}

func TestRenderPass(t *testing.T) {
	greeting := ptree.Define("Greeting", func(s *hooks.Store, props ptree.Props) *ptree.Element {
		name, _ := hooks.UseState(s, props["name"].(string))
		return ptree.Text("Hello, ", name)
	})
	rec := reconcile.New(ptree.Fragment(
		ptree.Create(greeting, ptree.Props{"name": "Ada"}),
		ptree.Text("!"),
	))

	renderer := NewRenderer(RendererConfig{})
	prompt, err := renderer.RenderPass(context.Background(), rec)
	if err != nil {
		t.Fatalf("RenderPass() error = %v", err)
	}
	if prompt.Text != "Hello, Ada!" {
		t.Errorf("Text = %q, want %q", prompt.Text, "Hello, Ada!")
	}
	if len(prompt.Metadata.Components) != 1 || prompt.Metadata.Components[0].Path != "f[0].Greeting" {
		t.Errorf("Components = %+v, want f[0].Greeting", prompt.Metadata.Components)
	}

	second, err := renderer.RenderPass(context.Background(), rec)
	if err != nil {
		t.Fatalf("second RenderPass() error = %v", err)
	}
	if second.Metadata.RenderID == prompt.Metadata.RenderID {
		t.Error("RenderID reused across passes")
	}
}

func TestRenderPassPropagatesReconcileError(t *testing.T) {
	rec := reconcile.New(ptree.Fragment(
		ptree.Keyed("k", ptree.Text("a")),
		ptree.Keyed("k", ptree.Text("b")),
	))
	_, err := NewRenderer(RendererConfig{}).RenderPass(context.Background(), rec)
	var dupErr *reconcile.DuplicateKeyError
	if !errors.As(err, &dupErr) {
		t.Errorf("RenderPass() error = %v, want *reconcile.DuplicateKeyError", err)
	}
}
