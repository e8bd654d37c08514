package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/db"
	"github.com/kailas-cloud/listingsearch/internal/domain"
	domindex "github.com/kailas-cloud/listingsearch/internal/domain/index"
)

// CreateVectorIndex declares the cosine vector index over the collection prefix.
// An existing index with the same name yields domain.ErrIndexExists.
func (r *Repo) CreateVectorIndex(ctx context.Context, spec domindex.Spec) (string, error) {
	b := db.NewIndex(r.cfg.IndexName).
		OnJSON().
		Prefix(r.cfg.KeyPrefix).
		VectorHNSW(embeddingPath, embeddingAlias, spec.Dimensions(), db.DistanceCosine, spec.HNSWM(), spec.EFConstruction())
	if spec.FilterableReviewScore() {
		b = b.Numeric(reviewScoreValuePath, ReviewScoreValueAttr)
	}

	def, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("%w: index definition: %w", domain.ErrValidation, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return r.cfg.IndexName, domain.ErrIndexExists
		}
		return "", fmt.Errorf("%w: create index %s: %w", domain.ErrStore, r.cfg.IndexName, err)
	}
	return r.cfg.IndexName, nil
}
