// Package document serves read access to stored listings.
package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// MaxIDLength bounds listing identifiers accepted from callers.
const MaxIDLength = 256

// Stats reports embedding coverage of the collection.
type Stats struct {
	Embedded   int
	Unembedded int
}

// Service handles listing reads.
type Service struct {
	repo Repository
}

// New creates a document service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a listing without its raw embedding.
func (s *Service) Get(ctx context.Context, id string) (*domlisting.Listing, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if len(id) > MaxIDLength {
		return nil, domain.NewValidationError("id", fmt.Sprintf("too long (max %d chars)", MaxIDLength))
	}

	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l.WithoutEmbedding(), nil
}

// Stats counts listings with and without an embedding.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	embedded, err := s.repo.CountEmbedded(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count embedded: %w", err)
	}
	unembedded, err := s.repo.CountUnembedded(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count unembedded: %w", err)
	}
	return Stats{Embedded: embedded, Unembedded: unembedded}, nil
}
