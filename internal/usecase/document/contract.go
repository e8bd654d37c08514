package document

import (
	"context"

	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// Repository defines the read contract for listings.
type Repository interface {
	Get(ctx context.Context, id string) (*domlisting.Listing, error)
	CountEmbedded(ctx context.Context) (int, error)
	CountUnembedded(ctx context.Context) (int, error)
}
