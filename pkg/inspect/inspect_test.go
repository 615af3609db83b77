package inspect

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/slicestore/pkg/observe"
	"github.com/vango-dev/slicestore/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(obs ...store.Observer) *store.Store {
	opts := []store.Option{store.WithLogger(quietLogger())}
	for _, o := range obs {
		opts = append(opts, store.WithObserver(o))
	}
	return store.New(func(set store.SetFunc) store.State {
		return store.State{
			"count": 0,
			"label": "clicks",
			"inc": func() {
				set(func(st store.State) store.State {
					return store.State{"count": st["count"].(int) + 1}
				}, "count")
			},
			"ch": make(chan int),
		}
	}, opts...)
}

func TestStateEndpoint(t *testing.T) {
	s := newTestStore()
	_ = s.Set(func(store.State) store.State { return store.State{"count": 3} }, "count")

	ins := New(s, WithLogger(quietLogger()))
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	ins.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Seq != 1 {
		t.Errorf("seq = %d, want 1", resp.Seq)
	}

	tests := []struct {
		field string
		want  any
	}{
		{"count", float64(3)},
		{"label", "clicks"},
		{"inc", ActionMarker},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := resp.State[tt.field]; got != tt.want {
				t.Errorf("state[%s] = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
	if ch, ok := resp.State["ch"].(string); !ok || !strings.HasPrefix(ch, "0x") {
		t.Errorf("state[ch] = %v, want a %%v rendering", resp.State["ch"])
	}
}

func TestKeysEndpoint(t *testing.T) {
	s := newTestStore()
	s.Subscribe("count", func() {})
	s.Subscribe("count", func() {})
	s.Subscribe("label", func() {})
	s.Subscribe(store.Global, func() {})

	ins := New(s)
	rec := httptest.NewRecorder()
	ins.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/keys", nil))

	var resp KeysResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []KeyInfo{{"count", 2}, {"label", 1}}
	if len(resp.Keys) != len(want) {
		t.Fatalf("keys = %+v, want %+v", resp.Keys, want)
	}
	for i := range want {
		if resp.Keys[i] != want[i] {
			t.Errorf("keys[%d] = %+v, want %+v", i, resp.Keys[i], want[i])
		}
	}
	if resp.Global != 1 {
		t.Errorf("global = %d, want 1", resp.Global)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestStore(observe.NewMetrics(observe.WithRegistry(reg)))
	_ = s.Set(func(store.State) store.State { return nil })

	ins := New(s, WithGatherer(reg))
	rec := httptest.NewRecorder()
	ins.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `slicestore_sets_total{scope="global",status="ok"} 1`) {
		t.Errorf("metrics output missing sets_total:\n%s", body)
	}
}

func TestWatchWithoutHub(t *testing.T) {
	ins := New(newTestStore())
	rec := httptest.NewRecorder()
	ins.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/watch", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWatchStreamsDispatches(t *testing.T) {
	hub := NewHub()
	s := newTestStore(hub)
	ins := New(s, WithHub(hub), WithLogger(quietLogger()))

	srv := httptest.NewServer(ins.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	s.Subscribe("count", func() { panic("bad subscriber") })
	inc, ok := store.Action[func()](s, "inc")
	if !ok {
		t.Fatal("inc action missing")
	}
	inc()
	_ = s.Set(func(store.State) store.State { return store.State{"label": "taps"} })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first WatchMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Seq != 1 || first.Global || len(first.Keys) != 1 || first.Keys[0] != "count" {
		t.Errorf("first = %+v, want seq 1 keyed on count", first)
	}
	if first.Invoked != 1 || len(first.Faults) != 1 || !strings.HasPrefix(first.Faults[0], "S004") {
		t.Errorf("first faults = %+v", first)
	}

	var second WatchMessage
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if second.Seq != 2 || !second.Global || len(second.Keys) != 0 {
		t.Errorf("second = %+v, want seq 2 global", second)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	hub := NewHub()
	ins := New(newTestStore(hub), WithHub(hub), WithLogger(quietLogger()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ins.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/state"
	var resp *http.Response
	for start := time.Now(); time.Since(start) < 2*time.Second; time.Sleep(10 * time.Millisecond) {
		if resp, err = http.Get(url); err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHubWithoutClients(t *testing.T) {
	hub := NewHub()
	// Must not block or panic.
	hub.ObserveDispatch(store.DispatchEvent{Seq: 1, Global: true})
	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestClientEnqueueNeverBlocks(t *testing.T) {
	c := newClient(nil, 1)
	if !c.enqueue([]byte("a")) {
		t.Fatal("first enqueue should fit the buffer")
	}
	if c.enqueue([]byte("b")) {
		t.Error("enqueue on a full buffer should report false")
	}
	c.close()
	c.close()
}

func TestHubDropsClientWithFullBuffer(t *testing.T) {
	hub := NewHub()
	c := newClient(nil, 1)
	hub.clients[c] = struct{}{}

	hub.ObserveDispatch(store.DispatchEvent{Seq: 1, Global: true})
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1 while the buffer has room", hub.ClientCount())
	}

	done := make(chan struct{})
	go func() {
		hub.ObserveDispatch(store.DispatchEvent{Seq: 2, Global: true})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ObserveDispatch blocked on a full client")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want the slow client dropped", hub.ClientCount())
	}
	select {
	case <-c.done:
	default:
		t.Error("dropped client should be closed")
	}
}

func TestWatchStalledClientDoesNotBlockSet(t *testing.T) {
	hub := NewHub()
	s := newTestStore(hub)
	ins := New(s, WithHub(hub), WithLogger(quietLogger()))

	srv := httptest.NewServer(ins.Handler())
	defer srv.Close()

	// This client never reads.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Large messages fill the socket buffers quickly.
	prefix := strings.Repeat("x", 1024)
	keys := make([]store.Key, 26)
	for i := range keys {
		keys[i] = store.Key(prefix + string(rune('a'+i)))
	}

	start := time.Now()
	for i := 0; i < 500; i++ {
		if err := s.Set(func(store.State) store.State { return store.State{"label": i} }, keys...); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("500 sets took %v with a stalled watcher", elapsed)
	}
}
