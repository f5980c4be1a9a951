package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"github.com/vango-dev/vprompt/pkg/tokenizer"
)

// ErrInvalidBudget is returned when MaxTokens is negative.
var ErrInvalidBudget = errors.New("render: max tokens must not be negative")

// RendererConfig configures the prompt renderer.
type RendererConfig struct {
	// Tokenizer counts tokens. Defaults to a new approximate tokenizer.
	Tokenizer tokenizer.Tokenizer

	// MaxTokens is the token budget. Zero means unlimited.
	MaxTokens int

	// Separator is written between consecutive leaves.
	Separator string

	// Logger receives elision diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Renderer renders snapshots to prompt text. It is safe for concurrent
// use when its Tokenizer is.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Tokenizer == nil {
		config.Tokenizer = tokenizer.NewApprox()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Renderer{config: config}
}

// Leaf is one rendered text leaf.
type Leaf struct {
	Path   string  `json:"path"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
	Unit   int     `json:"unit"`
}

// ComponentStatistics are the statistics of one component node.
type ComponentStatistics struct {
	Path           string        `json:"path"`
	Name           string        `json:"name"`
	Renders        int           `json:"renders"`
	UpdateDataTime time.Duration `json:"updateDataTime"`
}

// PromptMetadata describes how a prompt was produced.
type PromptMetadata struct {
	RenderID uuid.UUID `json:"renderId"`

	// RenderTime is the reconcile duration; zero when the snapshot was
	// rendered without RenderPass.
	RenderTime     time.Duration         `json:"renderTime"`
	ElisionTime    time.Duration         `json:"elisionTime"`
	UpdateDataTime time.Duration         `json:"updateDataTime"`
	Components     []ComponentStatistics `json:"components,omitempty"`
}

// Prompt is the output of a render.
type Prompt struct {
	Text     string         `json:"text"`
	Tokens   int            `json:"tokens"`
	Leaves   []Leaf         `json:"leaves"`
	Elided   []Leaf         `json:"elided,omitempty"`
	Metadata PromptMetadata `json:"metadata"`
}

// String returns the prompt text.
func (p *Prompt) String() string {
	return p.Text
}

// unit is a group of leaves kept or elided together.
type unit struct {
	index  int
	weight float64
	leaves []Leaf
}

// Render renders snap. A nil snapshot renders an empty prompt.
func (r *Renderer) Render(snap *snapshot.Node) (*Prompt, error) {
	if r.config.MaxTokens < 0 {
		return nil, ErrInvalidBudget
	}

	prompt := &Prompt{
		Metadata: PromptMetadata{RenderID: uuid.New()},
	}
	collectStatistics(snap, &prompt.Metadata)

	start := time.Now()
	units := collectUnits(snap)
	kept := r.elide(units)
	prompt.Metadata.ElisionTime = time.Since(start)

	for _, u := range units {
		if kept[u.index] {
			prompt.Leaves = append(prompt.Leaves, u.leaves...)
		} else {
			prompt.Elided = append(prompt.Elided, u.leaves...)
		}
	}
	prompt.Text = r.join(prompt.Leaves)
	prompt.Tokens = r.config.Tokenizer.TokenLength(prompt.Text)

	if len(prompt.Elided) > 0 {
		r.config.Logger.Debug("prompt elided",
			"render_id", prompt.Metadata.RenderID,
			"elided", len(prompt.Elided),
			"tokens", prompt.Tokens,
			"max_tokens", r.config.MaxTokens,
		)
	}
	return prompt, nil
}

// RenderToString renders snap and returns the prompt text.
func (r *Renderer) RenderToString(snap *snapshot.Node) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter renders snap and writes the prompt text to w.
func (r *Renderer) RenderToWriter(w io.Writer, snap *snapshot.Node) error {
	prompt, err := r.Render(snap)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, prompt.Text)
	return err
}

// RenderPass reconciles rec and renders the resulting snapshot. The
// metadata's RenderTime is the reconcile duration.
func (r *Renderer) RenderPass(ctx context.Context, rec *reconcile.Reconciler) (*Prompt, error) {
	start := time.Now()
	snap, err := rec.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("render pass: %w", err)
	}
	renderTime := time.Since(start)

	prompt, err := r.Render(snap)
	if err != nil {
		return nil, err
	}
	prompt.Metadata.RenderTime = renderTime
	return prompt, nil
}

// elide returns the indexes of the units that fit the budget.
func (r *Renderer) elide(units []unit) map[int]bool {
	kept := make(map[int]bool, len(units))
	for _, u := range units {
		kept[u.index] = true
	}
	if r.config.MaxTokens == 0 || len(units) == 0 {
		return kept
	}

	order := make([]unit, len(units))
	copy(order, units)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].weight != order[j].weight {
			return order[i].weight < order[j].weight
		}
		return order[i].index > order[j].index
	})

	// Dropping more units never adds tokens, so the shortest prefix of
	// order that fits is found by bisection.
	n := sort.Search(len(order), func(k int) bool {
		dropped := make(map[int]bool, k)
		for _, u := range order[:k] {
			dropped[u.index] = true
		}
		return r.tokensWithout(units, dropped) <= r.config.MaxTokens
	})
	for _, u := range order[:n] {
		kept[u.index] = false
	}
	return kept
}

func (r *Renderer) tokensWithout(units []unit, dropped map[int]bool) int {
	var leaves []Leaf
	for _, u := range units {
		if !dropped[u.index] {
			leaves = append(leaves, u.leaves...)
		}
	}
	return r.config.Tokenizer.TokenLength(r.join(leaves))
}

func (r *Renderer) join(leaves []Leaf) string {
	var b strings.Builder
	for i, l := range leaves {
		if i > 0 {
			b.WriteString(r.config.Separator)
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

// collectUnits walks snap in document order and groups its leaves.
func collectUnits(snap *snapshot.Node) []unit {
	var units []unit
	var walk func(n *snapshot.Node, weight float64, chunk *unit)
	walk = func(n *snapshot.Node, weight float64, chunk *unit) {
		if n.Weight != nil {
			weight *= *n.Weight
		}
		if n.Chunk && chunk == nil {
			u := unit{index: len(units), weight: weight}
			for _, c := range n.Children {
				walk(c, weight, &u)
			}
			if len(u.leaves) > 0 {
				units = append(units, u)
			}
			return
		}
		if n.IsLeaf() {
			leaf := Leaf{Path: n.Path, Text: n.Text(), Weight: weight}
			if chunk != nil {
				leaf.Unit = chunk.index
				chunk.leaves = append(chunk.leaves, leaf)
				return
			}
			leaf.Unit = len(units)
			units = append(units, unit{index: leaf.Unit, weight: weight, leaves: []Leaf{leaf}})
			return
		}
		for _, c := range n.Children {
			walk(c, weight, chunk)
		}
	}
	if snap != nil {
		walk(snap, 1, nil)
	}
	return units
}

// collectStatistics sums update-data time and lists component nodes.
func collectStatistics(snap *snapshot.Node, md *PromptMetadata) {
	snapshot.Walk(snap, func(n *snapshot.Node) bool {
		md.UpdateDataTime += n.Statistics.UpdateDataTime
		if n.Statistics.Renders > 0 {
			md.Components = append(md.Components, ComponentStatistics{
				Path:           n.Path,
				Name:           n.Name,
				Renders:        n.Statistics.Renders,
				UpdateDataTime: n.Statistics.UpdateDataTime,
			})
		}
		return true
	})
}
