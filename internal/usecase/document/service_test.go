package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// --- Mocks ---

type mockRepo struct {
	listing       *domlisting.Listing
	getErr        error
	gotID         string
	embedded      int
	unembedded    int
	embeddedErr   error
	unembeddedErr error
}

func (m *mockRepo) Get(_ context.Context, id string) (*domlisting.Listing, error) {
	m.gotID = id
	return m.listing, m.getErr
}

func (m *mockRepo) CountEmbedded(_ context.Context) (int, error) {
	return m.embedded, m.embeddedErr
}

func (m *mockRepo) CountUnembedded(_ context.Context) (int, error) {
	return m.unembedded, m.unembeddedErr
}

// --- Tests ---

func TestGet_DropsEmbedding(t *testing.T) {
	stored := &domlisting.Listing{ID: "10006546", Name: "Ribeira Charming Duplex", Embedding: make([]float32, 768)}
	repo := &mockRepo{listing: stored}

	l, err := New(repo).Get(context.Background(), "10006546")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.gotID != "10006546" {
		t.Errorf("repo got id %q", repo.gotID)
	}
	if l.Embedding != nil || l.Name != "Ribeira Charming Duplex" {
		t.Errorf("unexpected listing: %+v", l)
	}
	if stored.Embedding == nil {
		t.Error("stored listing must not be mutated")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockRepo{getErr: domain.ErrNotFound}

	_, err := New(repo).Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_InvalidID(t *testing.T) {
	for _, id := range []string{"", strings.Repeat("x", MaxIDLength+1)} {
		_, err := New(&mockRepo{}).Get(context.Background(), id)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("id len %d: expected ErrValidation, got %v", len(id), err)
		}
	}
}

func TestStats(t *testing.T) {
	repo := &mockRepo{embedded: 5550, unembedded: 5}

	st, err := New(repo).Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Embedded != 5550 || st.Unembedded != 5 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStats_StoreError(t *testing.T) {
	storeErr := fmt.Errorf("%w: scan", domain.ErrStore)
	for _, repo := range []*mockRepo{{embeddedErr: storeErr}, {unembeddedErr: storeErr}} {
		if _, err := New(repo).Stats(context.Background()); !errors.Is(err, domain.ErrStore) {
			t.Errorf("expected ErrStore, got %v", err)
		}
	}
}
