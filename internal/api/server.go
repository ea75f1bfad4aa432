// Package api serves the operator HTTP interface: create, list, inspect and
// terminate chains, plus aggregate stats and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/metrics"
	"github.com/roach88/cadence/internal/probe"
	"github.com/roach88/cadence/internal/store"
)

// ChainService is the part of engine.Host the API needs.
type ChainService interface {
	CreateChain(ctx context.Context, target string, start time.Time) (string, error)
	TerminateChain(ctx context.Context, chainID string) error
	Chain(ctx context.Context, chainID string) (store.Chain, error)
	Chains(ctx context.Context, status store.ChainStatus) ([]store.Chain, error)
}

// StatsSource provides aggregate counters. *metrics.Aggregate implements it.
type StatsSource interface {
	Snapshot() metrics.Stats
}

// CreateRequest is the body of POST /v1/chains.
type CreateRequest struct {
	Target string `json:"target" validate:"required,max=2048,target"`
	// Count starts that many independent chains for the target.
	Count int `json:"count" validate:"omitempty,min=1,max=1000"`
	// ScheduledAt is the first generation's scheduled time. Default: now.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// CreateResponse is returned by POST /v1/chains.
type CreateResponse struct {
	ChainIDs []string `json:"chain_ids"`
}

// TerminateResponse is returned by DELETE /v1/chains/{id}.
type TerminateResponse struct {
	Chain store.Chain `json:"chain"`
}

// ListResponse is returned by GET /v1/chains.
type ListResponse struct {
	Chains []store.Chain `json:"chains"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Server routes operator requests to a ChainService.
type Server struct {
	chains   ChainService
	stats    StatsSource
	metrics  http.Handler
	health   func(ctx context.Context) error
	validate *validator.Validate
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithStats serves GET /v1/stats from src.
func WithStats(src StatsSource) Option {
	return func(s *Server) {
		s.stats = src
	}
}

// WithMetricsHandler serves GET /metrics with h.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHealthCheck makes GET /healthz report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// NewServer creates a Server and registers its routes.
func NewServer(chains ChainService, opts ...Option) (*Server, error) {
	s := &Server{
		chains:   chains,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	err := s.validate.RegisterValidation("target", func(fl validator.FieldLevel) bool {
		_, err := probe.ParseTarget(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("register target validation: %w", err)
	}

	s.RegisterRoutes(s.router)
	s.router.Use(logRequests)
	return s, nil
}

// RegisterRoutes registers all API routes on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/chains", s.CreateChains).Methods(http.MethodPost)
	r.HandleFunc("/v1/chains", s.ListChains).Methods(http.MethodGet)
	r.HandleFunc("/v1/chains/{id}", s.GetChain).Methods(http.MethodGet)
	r.HandleFunc("/v1/chains/{id}", s.TerminateChain).Methods(http.MethodDelete)
	r.HandleFunc("/v1/stats", s.Stats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CreateChains starts Count chains (default 1) for the requested target.
func (s *Server) CreateChains(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", validationDetails(err))
		return
	}

	count := req.Count
	if count == 0 {
		count = 1
	}
	var start time.Time
	if req.ScheduledAt != nil {
		start = *req.ScheduledAt
	}

	resp := CreateResponse{ChainIDs: make([]string, 0, count)}
	for i := 0; i < count; i++ {
		id, err := s.chains.CreateChain(r.Context(), req.Target, start)
		if err != nil {
			slog.Error("create chain failed", "target", req.Target, "created", len(resp.ChainIDs), "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create chain", resp)
			return
		}
		resp.ChainIDs = append(resp.ChainIDs, id)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListChains lists chains, optionally filtered by ?status=.
func (s *Server) ListChains(w http.ResponseWriter, r *http.Request) {
	status := store.ChainStatus(r.URL.Query().Get("status"))
	switch status {
	case "", store.ChainRunning, store.ChainTerminated, store.ChainFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status), nil)
		return
	}

	chains, err := s.chains.Chains(r.Context(), status)
	if err != nil {
		slog.Error("list chains failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chains", nil)
		return
	}
	if chains == nil {
		chains = []store.Chain{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Chains: chains})
}

// GetChain returns one chain.
func (s *Server) GetChain(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := s.chains.Chain(r.Context(), id)
	if err != nil {
		s.chainError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// TerminateChain stops a chain. Terminating a stopped chain succeeds.
func (s *Server) TerminateChain(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.chains.TerminateChain(r.Context(), id); err != nil {
		s.chainError(w, id, err)
		return
	}
	c, err := s.chains.Chain(r.Context(), id)
	if err != nil {
		s.chainError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, TerminateResponse{Chain: c})
}

// Stats returns the aggregate counters.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "stats are not enabled", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// Health reports whether the server can reach its store.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) chainError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, engine.ErrChainNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("chain %s not found", id), nil)
		return
	}
	slog.Error("chain request failed", "chain_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error", nil)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
