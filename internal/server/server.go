// Package server exposes the intern table over HTTP for inspection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lsi/internal/logger"
	"lsi/interning"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Table is the part of *interning.Table the server reads and writes.
type Table interface {
	InternBytes(b []byte) (interning.Handle, error)
	Stats() interning.Stats
}

// Server serves /stats, /metrics, /intern and /healthz.
type Server struct {
	addr     string
	table    Table
	gatherer prometheus.Gatherer
	log      logger.Logger
	mux      *http.ServeMux
}

// InternResponse is the body returned by /intern.
type InternResponse struct {
	Text    interning.Handle `json:"text"`
	Len     int              `json:"len"`
	Hash    uint64           `json:"hash"`
	Entries int              `json:"entries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the routes. gatherer may be nil, in which case /metrics
// serves the default Prometheus registry.
func NewServer(addr string, table Table, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		addr:     addr,
		table:    table,
		gatherer: gatherer,
		log:      log.With(logger.F("component", "server")),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /intern", s.handleIntern)
	s.mux.HandleFunc("POST /intern", s.handleIntern)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s
}

// Handler returns the routed handler, with panic recovery.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.mux)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("introspection server listening", logger.F("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("introspection server stopped")
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.table.Stats())
}

// handleIntern takes the text from the "text" query parameter, or from the
// request body on POST when the parameter is absent.
func (s *Server) handleIntern(w http.ResponseWriter, r *http.Request) {
	var text []byte
	switch q := r.URL.Query(); {
	case q.Has("text"):
		text = []byte(q.Get("text"))
	case r.Method == http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		text = body
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("missing text parameter"))
		return
	}

	h, err := s.table.InternBytes(text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interning.ErrInvalidUTF8) || errors.Is(err, interning.ErrOverflow) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, InternResponse{
		Text:    h,
		Len:     h.Len(),
		Hash:    h.Hash(),
		Entries: s.table.Stats().Entries,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panicked",
					logger.F("panic", fmt.Sprint(rec)),
					logger.F("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", logger.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
