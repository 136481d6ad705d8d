package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	domusage "github.com/kailas-cloud/resdex/internal/domain/usage"
	"github.com/kailas-cloud/resdex/internal/logger"
	healthuc "github.com/kailas-cloud/resdex/internal/usecase/health"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxBodyBytes        = 1 << 20
)

// Matcher ranks resources for a query.
type Matcher interface {
	Match(ctx context.Context, req match.Request) ([]match.Result, error)
}

// Syncer runs a reconciliation pass.
type Syncer interface {
	Sync(ctx context.Context, mode synchronizer.Mode, tables []string) (synchronizer.Report, error)
}

// OutcomeRecorder accepts usage feedback.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o domusage.Outcome) error
}

// HistoryReader lists stored match calls, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]match.History, error)
	ByQuery(ctx context.Context, query string, limit int) ([]match.History, error)
}

// ResourceReader serves registry lookups.
type ResourceReader interface {
	Get(ctx context.Context, id string) (resource.Resource, error)
	CountByStatus(ctx context.Context) (map[resource.Status]int, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers. history may be nil.
type Server struct {
	matcher       Matcher
	syncer        Syncer
	outcomes      OutcomeRecorder
	history       HistoryReader
	resources     ResourceReader
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Deps groups the services behind the API.
type Deps struct {
	Matcher   Matcher
	Syncer    Syncer
	Outcomes  OutcomeRecorder
	History   HistoryReader
	Resources ResourceReader
	Health    HealthChecker
}

// NewServer creates an HTTP API server.
func NewServer(d Deps, logger *zap.Logger) *Server {
	return &Server{
		matcher:   d.Matcher,
		syncer:    d.Syncer,
		outcomes:  d.Outcomes,
		history:   d.History,
		resources: d.Resources,
		health:    d.Health,
		logger:    logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
			sentinelHandler(domain.ErrInvalidResource, http.StatusBadRequest, CodeValidationFailed),
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
			sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
			sentinelHandler(domain.ErrRegistryUnavailable, http.StatusServiceUnavailable, CodeRegistryUnavailable),
			sentinelHandler(domain.ErrSourceUnavailable, http.StatusServiceUnavailable, CodeSourceUnavailable),
		},
	}
}

// Match handles POST /v1/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	types := make([]resource.Type, 0, len(req.ResourceTypes))
	for _, t := range req.ResourceTypes {
		rt, err := resource.ParseType(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return
		}
		types = append(types, rt)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.matcher.Match(ctx, match.Request{
		Query:         req.Query,
		TopK:          req.TopK,
		ResourceTypes: types,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, MatchToResponse(results))
}

// Sync handles POST /v1/sync.
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = string(synchronizer.ModeFull)
	}
	mode, err := synchronizer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	if mode == synchronizer.ModeIncremental && len(req.Tables) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "tables are required for INCREMENTAL sync")
		return
	}

	rep, err := s.syncer.Sync(r.Context(), mode, req.Tables)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportToResponse(&rep))
}

// RecordOutcome handles POST /v1/outcomes.
func (s *Server) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.outcomes.RecordOutcome(r.Context(), domusage.Outcome{
		ResourceID:     req.ResourceID,
		WasSelected:    req.WasSelected,
		Succeeded:      req.Succeeded,
		ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory handles GET /v1/history?limit=&query=.
func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "match history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		hh  []match.History
		err error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("query")); q != "" {
		hh, err = s.history.ByQuery(r.Context(), q, limit)
	} else {
		hh, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyToResponse(hh))
}

// GetResource handles GET /v1/resources/{id}.
func (s *Server) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.resources.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resourceToResponse(&res))
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.resources.CountByStatus(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Resources: counts})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage exposes only the sentinel text, never wrapped internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidResource,
		domain.ErrNotFound,
		domain.ErrEmbeddingProviderError,
		domain.ErrRegistryUnavailable,
		domain.ErrSourceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
