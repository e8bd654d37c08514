// Package index describes the vector index over listing embeddings.
package index

import (
	"fmt"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

// Status values reported by provisioning.
const (
	StatusCreated = "created"
	StatusExists  = "exists"
)

// Spec is the vector index definition (immutable value object).
type Spec struct {
	dimensions            int
	hnswM                 int
	efConstruction        int
	filterableReviewScore bool
}

// NewSpec validates index parameters. Zero HNSW parameters leave the store defaults.
func NewSpec(dimensions, hnswM, efConstruction int, filterableReviewScore bool) (Spec, error) {
	if dimensions != domain.EmbeddingDimensions {
		return Spec{}, domain.NewValidationError("dimensions",
			fmt.Sprintf("must be %d, got %d", domain.EmbeddingDimensions, dimensions))
	}
	if hnswM < 0 || hnswM > 512 {
		return Spec{}, domain.NewValidationError("hnsw_m", "must be between 0 and 512")
	}
	if efConstruction < 0 || efConstruction > 4096 {
		return Spec{}, domain.NewValidationError("hnsw_ef_construction", "must be between 0 and 4096")
	}
	return Spec{
		dimensions:            dimensions,
		hnswM:                 hnswM,
		efConstruction:        efConstruction,
		filterableReviewScore: filterableReviewScore,
	}, nil
}

// Dimensions returns the vector dimensionality.
func (s Spec) Dimensions() int { return s.dimensions }

// HNSWM returns the HNSW graph degree, 0 for the store default.
func (s Spec) HNSWM() int { return s.hnswM }

// EFConstruction returns the HNSW build-time candidate list size, 0 for the store default.
func (s Spec) EFConstruction() int { return s.efConstruction }

// FilterableReviewScore reports whether review_scores_value is declared so the
// minimum review score filter runs inside the KNN query.
func (s Spec) FilterableReviewScore() bool { return s.filterableReviewScore }
