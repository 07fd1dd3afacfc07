// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package server exposes the query processor over HTTP. Every connection
// owns one request State and one response buffer; both live until the
// connection closes and are reused by the requests it carries.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anjanb/questdb/internal/logging"
	"github.com/anjanb/questdb/internal/query"
	"github.com/anjanb/questdb/internal/respbuf"
)

// ContentType is sent with every query response.
const ContentType = "application/json; charset=utf-8"

// Options configures a Server.
type Options struct {
	Processor  *query.Processor
	BufferSize int
	// KeepAlive is the value of the Keep-Alive response header; empty omits it.
	KeepAlive string
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Log      *logging.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server routes HTTP requests to the processor.
type Server struct {
	opts   Options
	router *mux.Router
	log    *logging.Logger

	ids   atomic.Uint64
	mu    sync.Mutex
	conns map[net.Conn]*conn
}

// conn is the per-connection request context.
type conn struct {
	state *query.State
	buf   *respbuf.Buffer
}

type connKey struct{}

// New builds the router.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	s := &Server{opts: opts, log: opts.Log, conns: make(map[net.Conn]*conn)}
	r := mux.NewRouter()
	r.HandleFunc("/exec", s.exec).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer returns an http.Server that tracks connection lifecycles.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
		ConnContext:  s.connContext,
		ConnState:    s.connState,
	}
}

// Conns returns the number of open connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) newConn() *conn {
	return &conn{
		state: query.NewState(s.ids.Add(1)),
		buf:   s.opts.Processor.NewBuffer(s.opts.BufferSize),
	}
}

func (s *Server) connContext(ctx context.Context, nc net.Conn) context.Context {
	c := s.newConn()
	s.mu.Lock()
	s.conns[nc] = c
	s.mu.Unlock()
	return context.WithValue(ctx, connKey{}, c)
}

func (s *Server) connState(nc net.Conn, st http.ConnState) {
	if st != http.StateClosed && st != http.StateHijacked {
		return
	}
	s.mu.Lock()
	c, ok := s.conns[nc]
	delete(s.conns, nc)
	s.mu.Unlock()
	if ok {
		c.state.Clear()
		s.log.Trace(context.Background(), "connection closed", "conn", c.state.ConnID)
	}
}

// connFor returns the state of the request's connection. Requests served
// without connection tracking get a private one.
func (s *Server) connFor(r *http.Request) *conn {
	if c, ok := r.Context().Value(connKey{}).(*conn); ok {
		return c
	}
	return s.newConn()
}

func (s *Server) exec(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c := s.connFor(r)
	h := w.Header()
	h.Set("Content-Type", ContentType)
	if s.opts.KeepAlive != "" {
		h.Set("Keep-Alive", s.opts.KeepAlive)
	}
	c.buf.Begin(&chunkWriter{w: w, rc: http.NewResponseController(w)})
	if err := s.opts.Processor.Process(r.Context(), c.state, r.Form, c.buf); err != nil {
		// Abort the connection; the document is incomplete.
		panic(http.ErrAbortHandler)
	}
}

type statusResponse struct {
	Status  string              `json:"status"`
	Conns   int                 `json:"connections"`
	Workers []query.WorkerStats `json:"workers"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", ContentType)
	_ = json.NewEncoder(w).Encode(statusResponse{
		Status:  "ok",
		Conns:   s.Conns(),
		Workers: s.opts.Processor.Stats(),
	})
}

// chunkWriter sends buffer chunks as they are produced.
type chunkWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (c *chunkWriter) WriteHeader(status int) { c.w.WriteHeader(status) }

func (c *chunkWriter) WriteChunk(p []byte) error {
	if _, err := c.w.Write(p); err != nil {
		return err
	}
	return c.rc.Flush()
}
