package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/jam/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows its own route patterns.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Relay serves the session protocol and its HTTP endpoints.
type Relay struct {
	hub      *Hub
	router   *BasicRouter
	upgrader websocket.Upgrader
	logger   *log.Logger

	open    bool
	mu      sync.RWMutex
	tokens  map[string]struct{}
	revoked map[string]struct{}
}

// NewRelay creates a relay. With no configured tokens any bearer token (or none) is accepted.
func NewRelay(cfg shared.ServerConfig, logger *log.Logger) *Relay {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "relay")

	r := &Relay{
		hub:     NewHub(logger),
		router:  NewBasicRouter(),
		logger:  logger,
		tokens:  make(map[string]struct{}),
		revoked: make(map[string]struct{}),
	}
	for _, t := range cfg.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			r.tokens[t] = struct{}{}
		}
	}

	r.open = len(r.tokens) == 0

	r.router.Use(RequestLogger(logger))
	r.router.Handle(http.MethodGet, "/health", http.HandlerFunc(r.handleHealth))
	r.router.Handle(http.MethodGet, "/ws", r.requireToken(http.HandlerFunc(r.handleWS)))
	r.router.Handle(http.MethodGet, "/api/sessions/{id}", r.requireToken(http.HandlerFunc(r.handleSession)))
	return r
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Hub returns the relay's connection hub.
func (r *Relay) Hub() *Hub {
	return r.hub
}

// Revoke stops accepting token and closes its live connections with an authentication close code.
func (r *Relay) Revoke(token string) int {
	r.mu.Lock()
	delete(r.tokens, token)
	r.revoked[token] = struct{}{}
	r.mu.Unlock()

	return r.hub.CloseToken(token, "token revoked")
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and closes every live connection.
func (r *Relay) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Relay) authorize(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.revoked[token]; ok {
		return false
	}
	if r.open {
		return true
	}
	_, ok := r.tokens[token]
	return ok
}

// requireToken rejects requests whose bearer token is not accepted.
func (r *Relay) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.authorize(bearerToken(req)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// RequestLogger logs each request's method, path, status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

// statusRecorder captures the response status. It passes hijacking through so WebSocket upgrades still work.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%w: response writer cannot hijack", shared.ErrNotImplemented)
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
