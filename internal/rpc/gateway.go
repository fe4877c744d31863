// Package rpc serves the control surface as JSON-RPC 2.0.
//
// A Gateway accepts WebSocket connections, one Session each, and single
// calls over HTTP POST. Requests are decoded here; everything after
// decoding is the dispatch table's job. Mutating calls are reported to a
// Recorder for the call journal.
package rpc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/store"
)

// httpSessionID is the session id journaled for single HTTP calls.
const httpSessionID = "http"

// Recorder receives journal entries. Implementations must not block.
type Recorder interface {
	OpenSession(id, remote string)
	CloseSession(id string)
	Record(c store.Call)
}

type nopRecorder struct{}

func (nopRecorder) OpenSession(string, string) {}
func (nopRecorder) CloseSession(string)        {}
func (nopRecorder) Record(store.Call)          {}

// Gateway is an http.Handler serving the method table.
type Gateway struct {
	table       *dispatch.Table
	ids         IDGenerator
	recorder    Recorder
	logger      *slog.Logger
	maxInFlight int
	upgrader    websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithIDGenerator sets the session id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(gw *Gateway) {
		gw.ids = g
	}
}

// WithRecorder sets the journal recorder.
func WithRecorder(r Recorder) Option {
	return func(gw *Gateway) {
		gw.recorder = r
	}
}

// WithMaxInFlight sets the per-session in-flight limit. Zero disables it.
func WithMaxInFlight(n int) Option {
	return func(gw *Gateway) {
		gw.maxInFlight = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(gw *Gateway) {
		gw.logger = l
	}
}

// NewGateway creates a gateway serving table.
func NewGateway(table *dispatch.Table, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &Gateway{
		table:       table,
		ids:         UUIDv7Generator{},
		recorder:    nopRecorder{},
		logger:      slog.Default(),
		maxInFlight: DefaultMaxInFlight,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(gw)
	}
	return gw
}

// ServeHTTP upgrades WebSocket requests to a session and answers POST
// bodies as single calls.
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if gw.ctx.Err() != nil {
		http.Error(w, "gateway is shutting down", http.StatusServiceUnavailable)
		return
	}
	switch {
	case websocket.IsWebSocketUpgrade(r):
		gw.serveSession(w, r)
	case r.Method == http.MethodPost:
		gw.serveSingle(w, r)
	default:
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "use a WebSocket upgrade or POST", http.StatusMethodNotAllowed)
	}
}

func (gw *Gateway) serveSession(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		gw.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := newSession(gw, conn, gw.ids.Generate(), r.RemoteAddr)
	gw.mu.Lock()
	if gw.ctx.Err() != nil {
		gw.mu.Unlock()
		conn.Close()
		return
	}
	gw.sessions[s.id] = s
	gw.wg.Add(1)
	gw.mu.Unlock()
	defer gw.wg.Done()

	gw.recorder.OpenSession(s.id, s.remote)
	gw.logger.Info("session opened", "session", s.id, "remote", s.remote)
	s.run(gw.ctx)
}

func (gw *Gateway) serveSingle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	gw.mu.Lock()
	if gw.ctx.Err() != nil {
		gw.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	gw.wg.Add(1)
	gw.mu.Unlock()
	defer gw.wg.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(gw.ctx, cancel)
	defer stop()

	s := newSession(gw, nil, httpSessionID, r.RemoteAddr)
	out := s.handle(ctx, body)()
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (gw *Gateway) forget(s *Session) {
	gw.mu.Lock()
	delete(gw.sessions, s.id)
	gw.mu.Unlock()
}

// Sessions returns the number of open WebSocket sessions.
func (gw *Gateway) Sessions() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.sessions)
}

// Close ends every session, cancelling their pending calls, and waits
// for them to clean up. New connections are refused afterwards.
func (gw *Gateway) Close() error {
	gw.mu.Lock()
	gw.cancel()
	gw.mu.Unlock()
	gw.wg.Wait()
	return nil
}

// observe logs a finished call and journals it when it mutates state.
func (gw *Gateway) observe(s *Session, c *call, err error) {
	elapsed := time.Since(c.started)
	switch {
	case err == nil:
		gw.logger.Debug("call", "session", s.id, "method", c.req.Method, "elapsed", elapsed)
	case control.KindOf(err) == control.KindInternal && !isMethodNotFound(err):
		gw.logger.Error("call failed", "session", s.id, "method", c.req.Method, "error", err)
	default:
		gw.logger.Debug("call failed", "session", s.id, "method", c.req.Method, "error", err, "elapsed", elapsed)
	}
	s.record(c, err)
}
