package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	domusage "github.com/kailas-cloud/listingsearch/internal/domain/usage"
	logpkg "github.com/kailas-cloud/listingsearch/internal/logger"
	"github.com/kailas-cloud/listingsearch/internal/metrics"
	healthuc "github.com/kailas-cloud/listingsearch/internal/usecase/health"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SearchDefaults fill search parameters the caller omits.
type SearchDefaults struct {
	NumCandidates       int
	Limit               int
	TopK                int
	SimilarityThreshold float64
}

// Config holds transport settings.
type Config struct {
	APIKeys          []string
	DefaultBatchSize int
	Search           SearchDefaults
}

// Server serves the listingsearch HTTP API.
type Server struct {
	backfill      Backfiller
	search        Searcher
	index         IndexProvisioner
	documents     DocumentReader
	usage         UsageReporter
	health        HealthChecker
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	backfill Backfiller,
	search Searcher,
	index IndexProvisioner,
	documents DocumentReader,
	usage UsageReporter,
	health HealthChecker,
	cfg Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		backfill:      backfill,
		search:        search,
		index:         index,
		documents:     documents,
		usage:         usage,
		health:        health,
		cfg:           cfg,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/batch-embeddings", s.RunBackfill)
		r.Get("/batch-embeddings/progress", s.BackfillProgress)
		r.Get("/stats", s.DocumentStats)
		r.Get("/{id}", s.GetDocument)
	})
	r.Post("/search", s.Search)
	r.Post("/search/create", s.CreateIndex)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// RunBackfill handles POST /documents/batch-embeddings.
// batch_size comes from the query string; a non-zero body batch_size wins.
func (s *Server) RunBackfill(w http.ResponseWriter, r *http.Request) {
	batchSize := s.cfg.DefaultBatchSize
	if q := r.URL.Query().Get("batch_size"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			s.handleDomainError(w, r, domain.NewValidationError("batch_size", "must be a positive integer"))
			return
		}
		batchSize = n
	}

	var body BackfillRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.BatchSize != nil && *body.BatchSize != 0 {
		batchSize = *body.BatchSize
	}

	// A full backfill outlives the server write timeout and must not stop when the
	// client goes away; progress stays readable on the progress route.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logpkg.FromContext(r.Context(), s.logger).Debug("write deadline not lifted", zap.Error(err))
	}
	res, err := s.backfill.RunBackfill(context.WithoutCancel(r.Context()), batchSize)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backfillToResponse(res))
}

// BackfillProgress handles GET /documents/batch-embeddings/progress.
func (s *Server) BackfillProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, progressToResponse(s.backfill.Progress()))
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	l, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: l})
}

// DocumentStats handles GET /documents/stats.
func (s *Server) DocumentStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.documents.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		DocumentsWithEmbedding:    st.Embedded,
		DocumentsWithoutEmbedding: st.Unembedded,
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := s.searchRequestFromBody(&body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]json.RawMessage, len(resp.Results))
	for i := range resp.Results {
		items[i], err = searchResultToJSON(&resp.Results[i])
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Count: resp.Count, Reranked: resp.Reranked, Results: items})
}

func (s *Server) searchRequestFromBody(b *SearchRequest) (request.Request, error) {
	d := s.cfg.Search
	full := true
	if b.ReturnFullDocuments != nil {
		full = *b.ReturnFullDocuments
	}
	req, err := request.New(
		b.UserQuery,
		intOr(b.NumCandidates, d.NumCandidates),
		intOr(b.Limit, d.Limit),
		intOr(b.TopK, d.TopK),
		b.MinReviewScore,
		full,
		floatOr(b.SimilarityThreshold, d.SimilarityThreshold),
	)
	if err != nil {
		return request.Request{}, fmt.Errorf("build search request: %w", err)
	}
	return req, nil
}

// CreateIndex handles POST /search/create.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	res, err := s.index.Provision(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{IndexName: res.IndexName, Status: res.Status})
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Only an unreachable store makes the service unavailable.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// decodeOptionalJSON decodes the body into v; an empty body leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err //nolint:wrapcheck // surfaced to the client as a bad request
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
