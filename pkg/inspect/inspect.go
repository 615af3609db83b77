package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/slicestore/pkg/store"
)

// ActionMarker replaces function-valued fields in /state output.
const ActionMarker = "<action>"

// Option configures an Inspector.
type Option func(*Inspector)

// WithHub enables /watch using hub. Without a hub /watch returns 404.
func WithHub(hub *Hub) Option {
	return func(i *Inspector) {
		i.hub = hub
	}
}

// WithGatherer sets the metrics source for /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(i *Inspector) {
		i.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Inspector serves the read-only store view.
type Inspector struct {
	store    *store.Store
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   chi.Router
	server   *http.Server
}

// New creates an inspector for s.
func New(s *store.Store, opts ...Option) *Inspector {
	i := &Inspector{
		store:    s,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.hub != nil {
		i.hub.logger = i.logger
	}
	i.router = i.routes()
	return i
}

func (i *Inspector) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/state", i.handleState)
	r.Get("/keys", i.handleKeys)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(i.gatherer, promhttp.HandlerOpts{}))
	if i.hub != nil {
		r.Get("/watch", i.hub.HandleWebSocket)
	}
	return r
}

// Handler returns the inspector's HTTP handler.
func (i *Inspector) Handler() http.Handler {
	return i.router
}

// ListenAndServe serves the inspector on addr until ctx is cancelled.
func (i *Inspector) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inspect: listen %s: %w", addr, err)
	}
	return i.Serve(ctx, ln)
}

// Serve serves the inspector on ln until ctx is cancelled.
func (i *Inspector) Serve(ctx context.Context, ln net.Listener) error {
	i.server = &http.Server{
		Handler:           i.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		i.logger.Info("slicestore: inspector listening", "addr", ln.Addr().String())
		errCh <- i.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if i.hub != nil {
		i.hub.Close()
	}
	if err := i.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// StateResponse is the /state body.
type StateResponse struct {
	Seq   uint64         `json:"seq"`
	State map[string]any `json:"state"`
}

// KeyInfo describes one subscribed key.
type KeyInfo struct {
	Key         string `json:"key"`
	Subscribers int    `json:"subscribers"`
}

// KeysResponse is the /keys body.
type KeysResponse struct {
	Keys   []KeyInfo `json:"keys"`
	Global int       `json:"global"`
}

func (i *Inspector) handleState(w http.ResponseWriter, r *http.Request) {
	st := i.store.Get()
	writeJSON(w, StateResponse{
		Seq:   i.store.Seq(),
		State: sanitize(st),
	})
}

func (i *Inspector) handleKeys(w http.ResponseWriter, r *http.Request) {
	reg := i.store.Registry()
	keys := reg.Keys()
	resp := KeysResponse{
		Keys:   make([]KeyInfo, 0, len(keys)),
		Global: reg.Subscribers(store.Global),
	}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, KeyInfo{Key: string(k), Subscribers: reg.Subscribers(k)})
	}
	writeJSON(w, resp)
}

// sanitize makes st safe for JSON encoding. Function values become
// ActionMarker and values encoding/json rejects are rendered with %v.
func sanitize(st store.State) map[string]any {
	out := make(map[string]any, len(st))
	for name, v := range st {
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			out[name] = ActionMarker
			continue
		}
		if _, err := json.Marshal(v); err != nil {
			out[name] = fmt.Sprintf("%v", v)
			continue
		}
		out[name] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
