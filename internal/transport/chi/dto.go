package chi

import (
	"encoding/json"
	"fmt"
	"time"

	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/listingsearch/internal/domain/usage"
	backfilluc "github.com/kailas-cloud/listingsearch/internal/usecase/backfill"
)

// BackfillRequest is the optional body of POST /documents/batch-embeddings.
type BackfillRequest struct {
	BatchSize *int `json:"batch_size,omitempty"`
}

// BackfillResponse reports one backfill run.
type BackfillResponse struct {
	DocumentsToEmbed  int    `json:"documents_to_embed"`
	DocumentsEmbedded int    `json:"documents_embedded"`
	Msg               string `json:"msg"`
}

// BackfillProgressResponse is the live view of the current or last run.
type BackfillProgressResponse struct {
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	TotalEligible  int        `json:"documents_to_embed"`
	Embedded       int        `json:"documents_embedded"`
	Batches        int        `json:"batches"`
	SkippedBatches int        `json:"skipped_batches"`
}

// SearchRequest is the body of POST /search. Omitted fields take configured defaults.
type SearchRequest struct {
	UserQuery           string   `json:"user_query"`
	NumCandidates       *int     `json:"num_candidates,omitempty"`
	Limit               *int     `json:"limit,omitempty"`
	TopK                *int     `json:"top_k,omitempty"`
	MinReviewScore      *int     `json:"min_review_score,omitempty"`
	ReturnFullDocuments *bool    `json:"return_full_documents,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Count    int               `json:"count"`
	Reranked bool              `json:"reranked"`
	Results  []json.RawMessage `json:"results"`
}

// IndexResponse is the body returned by POST /search/create.
type IndexResponse struct {
	IndexName string `json:"index_name"`
	Status    string `json:"status"`
}

// DocumentResponse wraps a single listing.
type DocumentResponse struct {
	Document *domlisting.Listing `json:"document"`
}

// StatsResponse reports embedding coverage.
type StatsResponse struct {
	DocumentsWithEmbedding    int `json:"documents_with_embedding"`
	DocumentsWithoutEmbedding int `json:"documents_without_embedding"`
}

// UsageResponse reports token usage for a budget period.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// HealthResponse reports dependency health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func backfillToResponse(r backfilluc.Result) BackfillResponse {
	return BackfillResponse{
		DocumentsToEmbed:  r.TotalEligible,
		DocumentsEmbedded: r.Embedded,
		Msg:               r.Message,
	}
}

func progressToResponse(p backfilluc.ProgressSnapshot) BackfillProgressResponse {
	resp := BackfillProgressResponse{
		Running:        p.Running,
		TotalEligible:  p.TotalEligible,
		Embedded:       p.Embedded,
		Batches:        p.Batches,
		SkippedBatches: p.SkippedBatches,
	}
	if !p.StartedAt.IsZero() {
		started := p.StartedAt
		resp.StartedAt = &started
	}
	return resp
}

func usageToResponse(r domusage.Report) UsageResponse {
	return UsageResponse{
		Period:          string(r.Period()),
		PeriodStartAt:   time.UnixMilli(r.PeriodStart()).UTC(),
		PeriodEndAt:     time.UnixMilli(r.PeriodEnd()).UTC(),
		TokensUsed:      r.TokensUsed(),
		TokensLimit:     r.TokensLimit(),
		TokensRemaining: r.TokensRemaining(),
		IsExhausted:     r.IsExhausted(),
	}
}

// searchResultToJSON renders a hit in document shape: the full listing or the
// minimal {_id, review_scores.review_scores_value} projection, plus its scores.
func searchResultToJSON(r *result.Result) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)

	if l := r.Listing(); l != nil {
		raw, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("encode listing %s: %w", r.ID(), err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("encode listing %s: %w", r.ID(), err)
		}
	} else {
		fields[domlisting.AttrID] = mustMarshal(r.ID())
		if v := r.ReviewScoreValue(); v != nil {
			fields[domlisting.AttrReviewScores] = mustMarshal(domlisting.ReviewScores{Value: v})
		}
	}

	fields["score"] = mustMarshal(r.Score())
	if rs := r.RerankScore(); rs != nil {
		fields["rerank_score"] = mustMarshal(*rs)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode result %s: %w", r.ID(), err)
	}
	return out, nil
}

// mustMarshal encodes values that cannot fail: strings, finite floats and plain structs.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
