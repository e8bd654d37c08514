package domain

import "context"

// RerankedItem is one reranker verdict. Index points into the documents slice passed to Rerank.
type RerankedItem struct {
	Index          int
	RelevanceScore float64
}

// Reranker scores documents against a query with a cross-encoder.
// Results are ordered by relevance, most relevant first. Callers fall back to the
// original candidate order on error or empty output.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankedItem, error)
}
