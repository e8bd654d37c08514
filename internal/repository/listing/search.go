package listing

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/db"
	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/result"
)

// VectorSearch returns the closest listings in store order (descending similarity).
// Full hits carry the listing without its vector; minimal hits carry id and review score value.
func (r *Repo) VectorSearch(ctx context.Context, q request.KNN) ([]result.Result, error) {
	var filters filter.Expression
	if q.MinReviewScore != nil {
		if !r.cfg.FilterableReviewScore {
			return nil, domain.NewValidationError("min_review_score",
				"review score filtering is not enabled on the vector index")
		}
		expr, err := filter.AtLeast(ReviewScoreValueAttr, float64(*q.MinReviewScore))
		if err != nil {
			return nil, fmt.Errorf("%w: review score filter: %w", domain.ErrValidation, err)
		}
		filters = expr
	}

	returnFields := []string{reviewScoreValuePath}
	if q.Full {
		returnFields = []string{"$"}
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  embeddingAlias,
		Filters:      filters,
		Vector:       q.Vector,
		K:            q.NumCandidates,
		Limit:        q.Limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", domain.ErrStore, err)
	}

	out := make([]result.Result, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := r.idFromKey(e.Key)
		if !q.Full {
			score, _ := parseReviewScoreValue(e.Fields[reviewScoreValuePath])
			out = append(out, result.NewMinimal(id, score, e.Score))
			continue
		}
		l, err := decodeListing([]byte(e.Fields["$"]), id)
		if err != nil {
			return nil, fmt.Errorf("%w: decode hit %s: %w", domain.ErrStore, e.Key, err)
		}
		out = append(out, result.NewFull(l, e.Score))
	}
	return out, nil
}
