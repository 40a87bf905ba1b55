package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	healthuc "github.com/kailas-cloud/paperfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/paperfeed/internal/usecase/ingest"
)

// Error codes returned in error bodies.
const (
	codeBadRequest      = "bad_request"
	codeInvalidArgument = "invalid_argument"
	codeNotFound        = "not_found"
	codeUpstream        = "upstream_error"
	codeUnavailable     = "search_unavailable"
	codeTimeout         = "timeout"
	codeInternal        = "internal_error"
)

const maxIndexPapers = 1000

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Limits bounds query parameters.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
	DefaultK     int
	MaxK         int
}

// Server serves the paperfeed HTTP API.
type Server struct {
	recommender   Recommender
	searcher      Searcher
	indexer       Indexer
	history       History
	health        HealthChecker
	limits        Limits
	now           func() time.Time
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommender Recommender,
	searcher Searcher,
	indexer Indexer,
	history History,
	health HealthChecker,
	limits Limits,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		recommender: recommender,
		searcher:    searcher,
		indexer:     indexer,
		history:     history,
		health:      health,
		limits:      limits,
		now:         time.Now,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, codeInvalidArgument),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeInvalidArgument),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrMalformedExpansion, http.StatusBadGateway, codeUpstream),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeUpstream),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeUpstream),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusBadGateway, codeUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/recommendations", s.Recommendations)
		r.Get("/search", s.Search)
		r.Post("/index", s.Index)
		r.Post("/users/{userID}/searches", s.RecordSearch)
		r.Post("/users/{userID}/views", s.RecordView)
	})
}

// Recommendations handles GET /v1/recommendations.
func (s *Server) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), s.limits.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "offset must be an integer")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.recommender.Recommend(ctx, q.Get("user_id"), limit, offset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]scoredPaperJSON, len(res.Items))
	for i := range res.Items {
		items[i] = scoredToJSON(&res.Items[i])
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, recommendationsResponse{
		RecommendationID: res.ID,
		Personalized:     res.Personalized,
		Backfilled:       res.Backfilled,
		Items:            items,
	})
}

// Search handles GET /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "q is required")
		return
	}
	k, err := intParam(q.Get("k"), s.limits.DefaultK)
	if err != nil || k < 1 || (s.limits.MaxK > 0 && k > s.limits.MaxK) {
		writeError(w, http.StatusBadRequest, codeInvalidArgument,
			fmt.Sprintf("k must be an integer between 1 and %d", s.limits.MaxK))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ids, err := s.searcher.Search(ctx, query, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{IDs: ids, Papers: []paperJSON{}}
	if len(ids) > 0 {
		papers, err := s.history.GetPapers(ctx, ids)
		if err != nil {
			s.log(r).Warn("search papers unavailable", zap.Error(err))
		}
		for i := range papers {
			resp.Papers = append(resp.Papers, paperToJSON(&papers[i]))
		}
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// Index handles POST /v1/index.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sources := 0
	for _, set := range []bool{len(req.Papers) > 0, len(req.IDs) > 0, req.Recent != 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "exactly one of papers, ids or recent is required")
		return
	}
	if len(req.Papers) > maxIndexPapers || len(req.IDs) > maxIndexPapers {
		writeError(w, http.StatusBadRequest, codeInvalidArgument,
			fmt.Sprintf("at most %d papers per request", maxIndexPapers))
		return
	}

	var (
		rep ingestuc.Report
		err error
	)
	ctx, usage := domain.NewContextWithUsage(r.Context())
	switch {
	case len(req.Papers) > 0:
		papers := make([]paper.Paper, len(req.Papers))
		for i := range req.Papers {
			if strings.TrimSpace(req.Papers[i].ID) == "" {
				writeError(w, http.StatusBadRequest, codeInvalidArgument, fmt.Sprintf("papers[%d].id is required", i))
				return
			}
			papers[i] = paperFromJSON(&req.Papers[i])
		}
		rep, err = s.indexer.Ingest(ctx, papers)
	case len(req.IDs) > 0:
		rep, err = s.indexer.IndexByIDs(ctx, req.IDs)
	default:
		rep, err = s.indexer.IndexRecent(ctx, max(req.Recent, 0))
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, reportToJSON(rep))
}

// RecordSearch handles POST /v1/users/{userID}/searches.
func (s *Server) RecordSearch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req searchEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "query is required")
		return
	}

	ev := interaction.SearchQuery{Text: strings.TrimSpace(req.Query), At: timeOr(req.At, s.now())}
	if err := s.history.RecordSearch(r.Context(), userID, ev); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordView handles POST /v1/users/{userID}/views.
func (s *Server) RecordView(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req viewEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.PaperID) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "paper_id is required")
		return
	}

	if err := s.history.RecordView(r.Context(), userID, req.PaperID, timeOr(req.At, s.now())); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logger.FromContextOr(r.Context(), s.logger)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return v, nil
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

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidArgument,
		domain.ErrVectorDimMismatch,
		domain.ErrNotFound,
		domain.ErrMalformedExpansion,
		domain.ErrCompletionProviderError,
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchUnavailable,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
