package inspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/ptree"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"github.com/vango-dev/vprompt/pkg/telemetry"
)

// logComponent appends every pumped string to its state.
var logComponent = ptree.Define("Log", func(s *hooks.Store, _ ptree.Props) *ptree.Element {
	lines, setLines := hooks.UseState[[]string](s)
	hooks.UseData(s, func(_ context.Context, line string) error {
		setLines.Update(func(prev []string) []string {
			return append(append([]string(nil), prev...), line)
		})
		return nil
	})
	return ptree.Fragment(ptree.Range(lines, func(line string, _ int) *ptree.Element {
		return ptree.Text(line)
	}))
})

func newTestServer(t *testing.T, cfg Config) (*Server, *reconcile.Reconciler) {
	t.Helper()
	rec := reconcile.New(ptree.Fragment(ptree.Text("header "), ptree.Create(logComponent, nil)))
	return New(rec, cfg), rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotBeforeReconcile(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	for _, target := range []string{"/snapshot", "/paths", "/query?path=f", "/prompt"} {
		if rec := get(t, srv.Handler(), target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
	}
}

func TestSnapshotRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	if _, err := srv.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if _, err := srv.Pump(context.Background(), "one"); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}
	h := srv.Handler()

	rec := get(t, h, "/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /snapshot status = %d", rec.Code)
	}
	var snap snapshot.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := snapshot.QueryValues(&snap, "f[1].Log.f.Text"); !cmp.Equal(got, []string{"one"}) {
		t.Errorf("snapshot Log lines = %v, want [one]", got)
	}

	rec = get(t, h, "/paths")
	var paths []string
	if err := json.Unmarshal(rec.Body.Bytes(), &paths); err != nil {
		t.Fatalf("decode paths: %v", err)
	}
	want := []string{"f", "f[0].Text", "f[1].Log", "f[1].Log.f", "f[1].Log.f.Text"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	rec = get(t, h, "/query?path="+url.QueryEscape("f[1].Log.f.Text"))
	var nodes []*snapshot.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Text() != "one" {
		t.Errorf("query returned %v, want one Text node", nodes)
	}

	if rec := get(t, h, "/query?path=f["); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid query status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = get(t, h, "/prompt")
	if got := rec.Body.String(); got != "header one" {
		t.Errorf("GET /prompt = %q, want %q", got, "header one")
	}
}

func TestPumpRoute(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/pump", strings.NewReader("early\n"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("pump before reconcile status = %d, want %d", rec.Code, http.StatusConflict)
	}

	if _, err := srv.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/pump", strings.NewReader("hello\n"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /pump status = %d: %s", rec.Code, rec.Body.String())
	}
	var snap snapshot.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := snapshot.QueryValues(&snap, "f[1].Log.f.Text"); !cmp.Equal(got, []string{"hello"}) {
		t.Errorf("Log lines = %v, want [hello]", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(telemetry.WithRegistry(reg))
	rec := reconcile.New(ptree.Text("x"), reconcile.WithObserver(m))
	srv := New(rec, Config{Gatherer: reg})
	if _, err := srv.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	resp := get(t, srv.Handler(), "/metrics")
	if !strings.Contains(resp.Body.String(), `vprompt_reconcile_total{status="success"} 1`) {
		t.Errorf("metrics output missing reconcile counter:\n%s", resp.Body.String())
	}

	if resp := get(t, New(rec, Config{}).Handler(), "/metrics"); resp.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without gatherer status = %d, want 404", resp.Code)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestWebSocketStream(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	if _, err := srv.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if msg := readMessage(t, conn); msg.Type != MessageSnapshot || msg.Snapshot == nil {
		t.Fatalf("first message = %+v, want current snapshot", msg)
	}

	if _, err := srv.Pump(context.Background(), "streamed"); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageSnapshot {
		t.Fatalf("message type = %q, want snapshot", msg.Type)
	}
	if got := snapshot.QueryValues(msg.Snapshot, "f[1].Log.f.Text"); !cmp.Equal(got, []string{"streamed"}) {
		t.Errorf("streamed Log lines = %v, want [streamed]", got)
	}

	srv.NotifyError(io.ErrUnexpectedEOF)
	if msg := readMessage(t, conn); msg.Type != MessageError || msg.Error != io.ErrUnexpectedEOF.Error() {
		t.Errorf("error message = %+v", msg)
	}
	if got := srv.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}
