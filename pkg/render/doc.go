// Package render turns reconciled snapshots into prompt text.
//
// The renderer collects the text leaves of a snapshot in document order.
// When a token budget is set and the text exceeds it, whole units are
// elided, lowest weight first:
//
//   - a Chunk subtree is one unit, kept or dropped as a whole
//   - any other text leaf is a unit of its own
//
// A unit's weight is the product of the weights declared on it and its
// ancestors, 1 where none is declared. Among equal weights the later unit
// is dropped first.
//
// # Basic Usage
//
//	renderer := render.NewRenderer(render.RendererConfig{MaxTokens: 4096})
//	prompt, err := renderer.Render(snap)
//
// To reconcile and render in one step, with timing metadata:
//
//	prompt, err := renderer.RenderPass(ctx, rec)
//	fmt.Println(prompt.Metadata.RenderID, prompt.Metadata.RenderTime)
//
// # Streaming
//
// StreamingRenderer writes a prompt to an http.ResponseWriter and flushes
// after every unit.
package render
