package index

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

func TestNewSpec_Valid(t *testing.T) {
	s, err := NewSpec(768, 16, 200, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Dimensions() != 768 || s.HNSWM() != 16 || s.EFConstruction() != 200 || !s.FilterableReviewScore() {
		t.Errorf("unexpected spec: %+v", s)
	}
}

func TestNewSpec_StoreDefaults(t *testing.T) {
	s, err := NewSpec(768, 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HNSWM() != 0 || s.EFConstruction() != 0 {
		t.Errorf("expected store defaults, got %+v", s)
	}
}

func TestNewSpec_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		dims  int
		m     int
		ef    int
		field string
	}{
		{"wrong dims", 1536, 16, 200, "dimensions"},
		{"zero dims", 0, 16, 200, "dimensions"},
		{"negative m", 768, -1, 200, "hnsw_m"},
		{"huge m", 768, 1024, 200, "hnsw_m"},
		{"negative ef", 768, 16, -5, "hnsw_ef_construction"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSpec(tc.dims, tc.m, tc.ef, false)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}
