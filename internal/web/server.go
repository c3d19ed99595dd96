// Package web serves the to-do list pages.
//
// Routes:
//
//	GET  /                      landing page with the new-list form
//	POST /lists/new             create a list with its first item, redirect to it
//	GET  /lists/{id}/           show a list's items numbered by position
//	POST /lists/{id}/add_item   append an item, redirect back to the list
//	GET  /healthz               database liveness
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"superlists/internal/lists"
	"superlists/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger reports database reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Timeouts bound the HTTP server.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// Server wires the handlers to the list service.
type Server struct {
	svc      *lists.Service
	renderer *Renderer
	pinger   Pinger
	log      *zap.Logger
}

// NewServer creates a server. pinger may be nil.
func NewServer(svc *lists.Service, renderer *Renderer, pinger Pinger) *Server {
	return &Server{
		svc:      svc,
		renderer: renderer,
		pinger:   pinger,
		log:      logging.Get(logging.CategoryHTTP),
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.homePage)
	mux.HandleFunc("POST /lists/new", s.newList)
	mux.HandleFunc("GET /lists/{id}", s.appendSlash)
	mux.HandleFunc("GET /lists/{id}/{$}", s.viewList)
	mux.HandleFunc("POST /lists/{id}/add_item", s.addItem)
	mux.HandleFunc("GET /healthz", s.healthz)

	var h http.Handler = mux
	h = withRecover(s.log, h)
	h = withAccessLog(s.log, h)
	h = withRequestID(h)
	return h
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string, t Timeouts) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, t)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Template hot reload runs alongside when templates come from a directory.
func (s *Server) Serve(ctx context.Context, ln net.Listener, t Timeouts) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  t.Read,
		WriteTimeout: t.Write,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		grace := t.Shutdown
		if grace <= 0 {
			grace = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if s.renderer.Dir() != "" {
		g.Go(func() error {
			return s.renderer.Watch(gctx)
		})
	}

	return g.Wait()
}
