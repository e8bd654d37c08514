// Package search is the retrieval pipeline: embed, vector search, threshold, rerank.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/domain/listing"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/result"
	"github.com/kailas-cloud/listingsearch/internal/logger"
	"github.com/kailas-cloud/listingsearch/internal/metrics"
)

// Fallback reasons, also used as metric labels.
const (
	fallbackError    = "error"
	fallbackEmpty    = "empty"
	fallbackDisabled = "disabled"
)

// Response is the pipeline output.
type Response struct {
	Count    int
	Results  []result.Result
	Reranked bool
}

// Service runs retrieval requests.
type Service struct {
	repo     Repository
	embed    Embedder
	reranker Reranker
	logger   *zap.Logger
}

// New creates a search service. reranker may be nil, in which case results stay in vector order.
func New(repo Repository, embed Embedder, reranker Reranker, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, reranker: reranker, logger: logger}
}

// Search embeds the query, fetches candidates, drops those under the similarity threshold and
// reranks the rest. A failed or empty rerank returns the thresholded candidates unchanged.
func (s *Service) Search(ctx context.Context, req *request.Request) (Response, error) {
	log := logger.FromContext(ctx, s.logger)

	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return Response{}, fmt.Errorf("embed query: %w", err)
	}
	if err := domain.ValidateVector(emb.Embedding); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("embed query: %w: %w", err, domain.ErrEmbeddingService)
	}

	// Rerank text needs listing attributes, so full documents are fetched whenever a
	// reranker is wired and trimmed back to the minimal projection afterwards.
	fetchFull := req.ReturnFullDocuments() || s.reranker != nil
	candidates, err := s.repo.VectorSearch(ctx, req.KNN(emb.Embedding, fetchFull))
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("vector search: %w", err)
	}

	candidates = aboveThreshold(candidates, req.SimilarityThreshold())

	results, reranked := s.rerank(ctx, log, req, candidates)
	if !req.ReturnFullDocuments() {
		for i := range results {
			results[i] = results[i].Minimal()
		}
	}

	outcome := "fallback"
	if reranked {
		outcome = "reranked"
	}
	metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()

	return Response{Count: len(results), Results: results, Reranked: reranked}, nil
}

// aboveThreshold keeps candidates scoring at least threshold, preserving store order.
func aboveThreshold(candidates []result.Result, threshold float64) []result.Result {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Score() >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// rerank orders candidates by reranker relevance. The second return is false when the
// candidates came back unranked.
func (s *Service) rerank(
	ctx context.Context, log *zap.Logger, req *request.Request, candidates []result.Result,
) ([]result.Result, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}
	if s.reranker == nil {
		metrics.SearchFallbacksTotal.WithLabelValues(fallbackDisabled).Inc()
		return candidates, false
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = listing.RerankText(c.Listing())
	}

	items, err := s.reranker.Rerank(ctx, req.Query(), texts, req.TopK())
	if err != nil {
		metrics.SearchFallbacksTotal.WithLabelValues(fallbackError).Inc()
		log.Warn("Rerank failed, returning vector order",
			zap.Int("candidates", len(candidates)), zap.Error(err))
		return candidates, false
	}

	ranked := make([]result.Result, 0, len(items))
	used := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(candidates) {
			continue
		}
		if _, dup := used[it.Index]; dup {
			continue
		}
		used[it.Index] = struct{}{}
		ranked = append(ranked, candidates[it.Index].WithRerankScore(it.RelevanceScore))
	}

	if len(ranked) == 0 {
		metrics.SearchFallbacksTotal.WithLabelValues(fallbackEmpty).Inc()
		log.Warn("Rerank returned no results, returning vector order",
			zap.Int("candidates", len(candidates)))
		return candidates, false
	}
	return ranked, true
}
