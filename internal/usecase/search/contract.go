package search

import (
	"context"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/result"
)

// Repository runs the nearest-neighbour lookup.
type Repository interface {
	VectorSearch(ctx context.Context, q request.KNN) ([]result.Result, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Reranker scores candidate texts against the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankedItem, error)
}
