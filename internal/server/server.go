// Package server exposes pattern sessions over HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"pattern-bot/internal/metrics"
	"pattern-bot/internal/session"
	"pattern-bot/internal/symbol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the transport metrics the server reports
type MetricsInterface interface {
	Errors() metrics.MetricsCounter
	WSConnections() metrics.MetricsGauge
	Accuracy() float64
}

// CreateResponse is returned by POST /sessions
type CreateResponse struct {
	ID          string `json:"id"`
	ContextSize int    `json:"context_size"`
}

// PushRequest is the body of POST /sessions/{id}/push
type PushRequest struct {
	Input *symbol.Symbol `json:"input"`
}

// PredictResponse is returned by GET /sessions/{id}/predict
type PredictResponse struct {
	Available bool           `json:"available"`
	Next      *symbol.Symbol `json:"next,omitempty"`
}

// ErrorResponse carries a request failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server provides the HTTP API for pattern sessions
type Server struct {
	manager   *session.Manager
	metrics   MetricsInterface
	readLimit int64
	upgrader  websocket.Upgrader
	handler   http.Handler
	server    *http.Server
}

// New creates a server for manager listening on port. m may be nil.
func New(manager *session.Manager, port int, readLimit int64, m MetricsInterface) *Server {
	if readLimit <= 0 {
		readLimit = 1024
	}
	s := &Server{
		manager:   manager,
		metrics:   m,
		readLimit: readLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /sessions", s.handleCreate)
	mux.HandleFunc("GET /sessions", s.handleList)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /sessions/{id}/push", s.handlePush)
	mux.HandleFunc("GET /sessions/{id}/predict", s.handlePredict)
	mux.HandleFunc("GET /sessions/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /sessions/{id}/debug", s.handleDebug)
	mux.HandleFunc("GET /sessions/{id}/stream", s.handleStream)
	s.handler = requestLogger(mux)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for embedding and tests
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting pattern server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"sessions": s.manager.Len(),
	}
	if s.metrics != nil {
		body["accuracy"] = s.metrics.Accuracy()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{ID: sess.ID(), ContextSize: s.manager.ContextSize()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.readLimit)).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Input == nil {
		s.writeError(w, fmt.Errorf("%w: input is required", errBadRequest))
		return
	}

	out, err := sess.Push(*req.Input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse(sess))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Stats())
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func predictResponse(sess *session.Session) PredictResponse {
	next, ok := sess.PredictNext()
	if !ok {
		return PredictResponse{}
	}
	return PredictResponse{Available: true, Next: &next}
}

var errBadRequest = errors.New("invalid request")

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrTooManySessions):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest), errors.Is(err, symbol.ErrUnknownSymbol):
		status = http.StatusBadRequest
	}

	if s.metrics != nil {
		s.metrics.Errors().Inc()
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
