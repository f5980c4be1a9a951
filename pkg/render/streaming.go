package render

import (
	"io"
	"net/http"

	"github.com/vango-dev/vprompt/pkg/snapshot"
)

// StreamingRenderer wraps Renderer with chunked output support.
// It flushes after every unit so clients see the prompt as it is written.
type StreamingRenderer struct {
	*Renderer
	flusher http.Flusher
	w       io.Writer
}

// NewStreamingRenderer creates a streaming renderer that writes to
// an http.ResponseWriter. If the writer implements http.Flusher,
// content is flushed after each unit.
func NewStreamingRenderer(w http.ResponseWriter, config RendererConfig) *StreamingRenderer {
	flusher, _ := w.(http.Flusher)
	return &StreamingRenderer{
		Renderer: NewRenderer(config),
		flusher:  flusher,
		w:        w,
	}
}

// RenderPrompt renders snap and streams the kept leaves.
func (s *StreamingRenderer) RenderPrompt(snap *snapshot.Node) (*Prompt, error) {
	prompt, err := s.Render(snap)
	if err != nil {
		return nil, err
	}

	unit := -1
	for i, leaf := range prompt.Leaves {
		if i > 0 {
			if leaf.Unit != unit {
				s.flush()
			}
			if _, err := io.WriteString(s.w, s.config.Separator); err != nil {
				return nil, err
			}
		}
		unit = leaf.Unit
		if _, err := io.WriteString(s.w, leaf.Text); err != nil {
			return nil, err
		}
	}
	s.flush()
	return prompt, nil
}

// flush flushes the writer if it supports flushing.
func (s *StreamingRenderer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// FlushableWriter wraps an io.Writer with optional flushing capability.
// This is useful for testing streaming behavior without using http.ResponseWriter.
type FlushableWriter struct {
	io.Writer
	FlushCount int
}

// Flush implements http.Flusher.
func (w *FlushableWriter) Flush() {
	w.FlushCount++
}
