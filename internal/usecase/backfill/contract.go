package backfill

import (
	"context"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// Repository is the listing store contract the backfill loop needs.
type Repository interface {
	CountUnembedded(ctx context.Context) (int, error)
	CountEmbedded(ctx context.Context) (int, error)
	FindUnembedded(ctx context.Context, limit int, skip map[string]struct{}) ([]*domlisting.Listing, error)
	BulkSetEmbeddings(ctx context.Context, updates []domlisting.EmbeddingUpdate) (domlisting.BulkResult, error)
}

// Embedder vectorizes a whole batch in one provider call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
