// Package inspect serves a reconciler's snapshots over HTTP.
//
// Routes:
//
//	GET  /snapshot          last committed snapshot as JSON
//	GET  /paths             every snapshot path
//	GET  /query?path=P      nodes matching P
//	GET  /prompt            rendered prompt text, streamed
//	POST /pump              pump the request body as a string, then reconcile
//	GET  /ws                snapshot stream; one message per commit
//	GET  /metrics           Prometheus metrics, when a gatherer is configured
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/render"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"github.com/vango-dev/vprompt/pkg/telemetry"
)

// maxPumpBody limits POST /pump bodies.
const maxPumpBody = 1 << 20

// MessageType identifies a websocket message.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageError    MessageType = "error"
)

// Message is sent to websocket clients.
type Message struct {
	Type     MessageType    `json:"type"`
	Snapshot *snapshot.Node `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Config configures the inspector.
type Config struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// RendererConfig configures GET /prompt.
	RendererConfig render.RendererConfig

	// Gatherer enables GET /metrics.
	Gatherer prometheus.Gatherer

	// PipeName names the pipe used by POST /pump (default: "inspect").
	PipeName string
}

// Server is the inspector HTTP server.
type Server struct {
	rec    *reconcile.Reconciler
	pipe   *reconcile.Pipe
	config Config
	router chi.Router

	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	writeMu  sync.Mutex
	upgrader websocket.Upgrader
}

// New creates an inspector for rec.
func New(rec *reconcile.Reconciler, config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PipeName == "" {
		config.PipeName = "inspect"
	}
	s := &Server{
		rec:     rec,
		pipe:    rec.CreatePipe(config.PipeName),
		config:  config,
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tool
			},
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/paths", s.handlePaths)
	r.Get("/query", s.handleQuery)
	r.Get("/prompt", s.handlePrompt)
	r.Post("/pump", s.handlePump)
	r.Get("/ws", s.handleWebSocket)
	if s.config.Gatherer != nil {
		r.Handle("/metrics", telemetry.Handler(s.config.Gatherer))
	}
	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.rec.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, reconcile.ErrNoTree)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	snap := s.rec.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, reconcile.ErrNoTree)
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Paths(snap))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if _, err := snapshot.Parse(path); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap := s.rec.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, reconcile.ErrNoTree)
		return
	}
	nodes := snapshot.Query(snap, path)
	if nodes == nil {
		nodes = []*snapshot.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	snap := s.rec.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, reconcile.ErrNoTree)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sr := render.NewStreamingRenderer(w, s.config.RendererConfig)
	if _, err := sr.RenderPrompt(snap); err != nil {
		s.config.Logger.Warn("prompt render failed", "error", err)
	}
}

func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPumpBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := s.Pump(r.Context(), strings.TrimRight(string(body), "\r\n"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reconcile.ErrNoTree) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Pump delivers value through the inspector's pipe, reconciles and
// publishes the new snapshot.
func (s *Server) Pump(ctx context.Context, value any) (*snapshot.Node, error) {
	if err := s.pipe.Pump(ctx, value); err != nil {
		s.NotifyError(err)
		return nil, err
	}
	return s.Reconcile(ctx)
}

// Reconcile runs a pass and publishes its snapshot, or the error.
func (s *Server) Reconcile(ctx context.Context) (*snapshot.Node, error) {
	snap, err := s.rec.Reconcile(ctx)
	if err != nil {
		s.NotifyError(err)
		return nil, err
	}
	s.Publish(snap)
	return snap, nil
}

// handleWebSocket upgrades the connection, sends the current snapshot and
// keeps the client registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.config.Logger.Debug("inspector client connected", "remote", r.RemoteAddr)

	if snap := s.rec.Snapshot(); snap != nil {
		s.send(conn, Message{Type: MessageSnapshot, Snapshot: snap})
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Publish sends snap to all websocket clients.
func (s *Server) Publish(snap *snapshot.Node) {
	s.broadcast(Message{Type: MessageSnapshot, Snapshot: snap})
}

// NotifyError sends an error message to all websocket clients.
func (s *Server) NotifyError(err error) {
	s.broadcast(Message{Type: MessageError, Error: err.Error()})
}

func (s *Server) broadcast(msg Message) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		s.send(client, msg)
	}
}

// send writes msg to conn, dropping the client on failure.
func (s *Server) send(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.config.Logger.Error("inspector message encode failed", "error", err)
		return
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close closes all client connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
