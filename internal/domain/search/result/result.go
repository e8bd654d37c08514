package result

import "github.com/kailas-cloud/listingsearch/internal/domain/listing"

// Result is a single retrieval hit. It carries either a full listing (without
// its embedding) or the minimal projection of id and review score value.
type Result struct {
	id               string
	listing          *listing.Listing
	reviewScoreValue *float64
	score            float64
	rerankScore      *float64
}

// NewFull creates a hit projecting the whole listing. The raw vector is dropped.
func NewFull(l *listing.Listing, score float64) Result {
	doc := l.WithoutEmbedding()
	r := Result{id: doc.ID, listing: doc, score: score}
	if v, ok := doc.ReviewScoreValue(); ok {
		r.reviewScoreValue = &v
	}
	return r
}

// NewMinimal creates a hit projecting only id and review score value.
func NewMinimal(id string, reviewScoreValue *float64, score float64) Result {
	return Result{id: id, reviewScoreValue: reviewScoreValue, score: score}
}

// WithRerankScore returns a copy carrying the reranker relevance score.
func (r Result) WithRerankScore(score float64) Result {
	r.rerankScore = &score
	return r
}

// Minimal returns the id, review score value and scores only, dropping the listing.
func (r Result) Minimal() Result {
	r.listing = nil
	return r
}

// ID returns the listing identifier.
func (r *Result) ID() string { return r.id }

// Listing returns the full projection, nil for minimal hits.
func (r *Result) Listing() *listing.Listing { return r.listing }

// ReviewScoreValue returns review_scores.review_scores_value if known.
func (r *Result) ReviewScoreValue() *float64 { return r.reviewScoreValue }

// Score returns the vector similarity score in [0,1].
func (r *Result) Score() float64 { return r.score }

// RerankScore returns the reranker relevance score, nil when not reranked.
func (r *Result) RerankScore() *float64 { return r.rerankScore }
