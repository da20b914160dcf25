// Package server exposes the conversion service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soypat/depthmesh/convert"
	"github.com/soypat/depthmesh/gateway"
	"github.com/soypat/depthmesh/internal/metrics"
	"github.com/soypat/depthmesh/render"
	"github.com/soypat/depthmesh/store"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// OwnerHeader identifies the caller. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

const maxRequestBody = 1 << 20

// Options configures a Server.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	// Preview holds the defaults for preview.png requests.
	Preview render.PreviewOptions
	// Workers bounds concurrently processed conversions. Zero means 4.
	Workers int
}

// Server routes HTTP requests to a convert.Service.
type Server struct {
	svc     *convert.Service
	logger  *zap.Logger
	metrics *metrics.Collector
	preview render.PreviewOptions
	workers *semaphore.Weighted
	handler http.Handler
}

// New builds the server and its routes.
func New(svc *convert.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	s := &Server{
		svc:     svc,
		logger:  opts.Logger.With(zap.String("component", "http")),
		metrics: opts.Metrics,
		preview: opts.Preview,
		workers: semaphore.NewWeighted(int64(opts.Workers)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /conversions", s.handleCreate)
	mux.HandleFunc("GET /conversions", s.handleList)
	mux.HandleFunc("GET /conversions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /conversions/{id}", s.handleDelete)
	mux.HandleFunc("POST /conversions/{id}/process", s.handleProcess)
	mux.HandleFunc("GET /conversions/{id}/export/{format}", s.handleExport)
	mux.HandleFunc("GET /conversions/{id}/preview.png", s.handlePreview)

	s.handler = chain(mux, recovery(s.logger), s.observe)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("HTTP server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	// Process runs the conversion before responding.
	Process bool `json:"process"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", convert.ErrInvalidRequest, err))
		return
	}
	rec, err := s.svc.Start(r.Context(), owner, req.Title, req.ImageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Process {
		s.process(w, r, rec.ID, http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	recs, err := s.svc.List(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.Get(r.Context(), owner, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), owner, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	if _, err := s.svc.Get(r.Context(), owner, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.process(w, r, id, http.StatusOK)
}

// process runs a conversion once a worker slot is free.
func (s *Server) process(w http.ResponseWriter, r *http.Request, id uuid.UUID, okStatus int) {
	if err := s.workers.Acquire(r.Context(), 1); err != nil {
		s.writeError(w, err)
		return
	}
	defer s.workers.Release(1)
	rec, err := s.svc.Process(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, okStatus, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	format, err := render.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	art, err := s.svc.Export(r.Context(), owner, id, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	opt := s.preview
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("width")); err == nil && v > 0 && v <= 4096 {
		opt.Width = v
	}
	if v, err := strconv.Atoi(q.Get("height")); err == nil && v > 0 && v <= 4096 {
		opt.Height = v
	}
	if c := q.Get("color"); c != "" {
		opt.Color = c
	}
	img, err := s.svc.Preview(r.Context(), owner, id, opt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("failed to encode preview", zap.Error(err))
	}
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(OwnerHeader)
	if owner == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
		return "", false
	}
	return owner, true
}

func (s *Server) ownerAndID(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid conversion id")
		return "", uuid.Nil, false
	}
	return owner, id, true
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, convert.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, convert.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrQuotaExhausted):
		return http.StatusPaymentRequired
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Retryable: convert.Retryable(err)})
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
