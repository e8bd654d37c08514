package request

import (
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength       = 4096
	DefaultNumCandidates = 150
	DefaultLimit         = 10
	DefaultTopK          = 5
	MaxNumCandidates     = 10000
)

// Request is a validated retrieval query.
type Request struct {
	query               string
	numCandidates       int
	limit               int
	topK                int
	minReviewScore      *int
	returnFullDocuments bool
	similarityThreshold float64
}

// New validates search parameters. Counts must be positive and the threshold within [0,1].
// NumCandidates below Limit is accepted: the store then yields at most NumCandidates results.
func New(
	query string,
	numCandidates, limit, topK int,
	minReviewScore *int,
	returnFullDocuments bool,
	similarityThreshold float64,
) (Request, error) {
	if query == "" {
		return Request{}, domain.NewValidationError("user_query", "is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, domain.NewValidationError("user_query", fmt.Sprintf("too long (max %d chars)", MaxQueryLength))
	}
	if numCandidates <= 0 || numCandidates > MaxNumCandidates {
		return Request{}, domain.NewValidationError("num_candidates", fmt.Sprintf("must be between 1 and %d", MaxNumCandidates))
	}
	if limit <= 0 {
		return Request{}, domain.NewValidationError("limit", "must be positive")
	}
	if topK <= 0 {
		return Request{}, domain.NewValidationError("top_k", "must be positive")
	}
	if similarityThreshold < 0 || similarityThreshold > 1 {
		return Request{}, domain.NewValidationError("similarity_threshold", "must be between 0 and 1")
	}

	return Request{
		query:               query,
		numCandidates:       numCandidates,
		limit:               limit,
		topK:                topK,
		minReviewScore:      minReviewScore,
		returnFullDocuments: returnFullDocuments,
		similarityThreshold: similarityThreshold,
	}, nil
}

// Query returns the free-text query.
func (r *Request) Query() string { return r.query }

// NumCandidates returns the number of nearest neighbours requested from the store.
func (r *Request) NumCandidates() int { return r.numCandidates }

// Limit returns the maximum results taken from vector search.
func (r *Request) Limit() int { return r.limit }

// TopK returns the number of results kept by the reranker.
func (r *Request) TopK() int { return r.topK }

// MinReviewScore returns the optional review score floor (nil means no filter).
func (r *Request) MinReviewScore() *int { return r.minReviewScore }

// ReturnFullDocuments reports whether full listings are projected.
func (r *Request) ReturnFullDocuments() bool { return r.returnFullDocuments }

// SimilarityThreshold returns the minimum vector score kept.
func (r *Request) SimilarityThreshold() float64 { return r.similarityThreshold }
