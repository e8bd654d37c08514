// Package index provisions the vector index backing the retrieval pipeline.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	domindex "github.com/kailas-cloud/listingsearch/internal/domain/index"
)

// Result reports the provisioned index.
type Result struct {
	IndexName string
	Status    string
}

// Service handles index provisioning.
type Service struct {
	repo   Repository
	spec   domindex.Spec
	logger *zap.Logger
}

// New creates an index service for a validated spec.
func New(repo Repository, spec domindex.Spec, logger *zap.Logger) *Service {
	return &Service{repo: repo, spec: spec, logger: logger}
}

// Provision creates the vector index. An index that already exists is not an error.
func (s *Service) Provision(ctx context.Context) (Result, error) {
	name, err := s.repo.CreateVectorIndex(ctx, s.spec)
	switch {
	case errors.Is(err, domain.ErrIndexExists):
		s.logger.Info("Vector index already exists", zap.String("index", name))
		return Result{IndexName: name, Status: domindex.StatusExists}, nil
	case err != nil:
		return Result{}, fmt.Errorf("create vector index: %w", err)
	}

	s.logger.Info("Vector index created",
		zap.String("index", name),
		zap.Int("dimensions", s.spec.Dimensions()),
		zap.Bool("filterable_review_score", s.spec.FilterableReviewScore()),
	)
	return Result{IndexName: name, Status: domindex.StatusCreated}, nil
}
