// Package httpapi serves a booking source over HTTP in the wire format the
// http source reads, so one process can back another's timeline.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/penwyp/go-booking-timeline/internal/data/source"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// Server is a thin wrapper over chi and http.Server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *http.Server
}

// NewServer mounts the booking API for src on addr
func NewServer(addr string, src source.Source) *Server {
	m := NewRouter(src)
	return &Server{
		addr: addr,
		mux:  m,
		srv: &http.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter returns the API routes for src
func NewRouter(src source.Source) *chi.Mux {
	h := &handlers{src: src}

	m := chi.NewRouter()
	m.Use(middleware.RequestID)
	m.Use(middleware.Recoverer)
	m.Use(requestLogger)

	m.Post(source.PathSearch, h.search)
	m.Get(source.PathRecord, h.record)
	m.Get(source.PathCatalog, h.catalog)
	m.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return m
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the listening address
func (s *Server) Addr() string { return s.addr }

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		util.LogInfo("HTTP API listening", util.F("addr", s.addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		util.LogDebug("HTTP API request",
			util.F("method", r.Method),
			util.F("path", r.URL.Path),
			util.F("status", ww.Status()),
			util.F("elapsed", time.Since(start).String()),
			util.F("request_id", middleware.GetReqID(r.Context())))
	})
}
