package index

import (
	"context"

	domindex "github.com/kailas-cloud/listingsearch/internal/domain/index"
)

// Repository declares the vector index in the store.
type Repository interface {
	CreateVectorIndex(ctx context.Context, spec domindex.Spec) (string, error)
}
