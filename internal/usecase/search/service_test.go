package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/result"
)

func tenHits(request.KNN) ([]result.Result, error) {
	out := make([]result.Result, 10)
	for i := range out {
		out[i] = hit(fmt.Sprintf("h%d", i), 0.9-float64(i)*0.05, f64(4))
	}
	return out, nil
}

func TestSearch_RerankedTopK(t *testing.T) {
	repo := &mockRepo{fn: tenHits}
	emb := &mockEmbedder{}
	rr := &mockReranker{fn: func(docs []string, topK int) ([]domain.RerankedItem, error) {
		return []domain.RerankedItem{
			{Index: 7, RelevanceScore: 0.95},
			{Index: 2, RelevanceScore: 0.80},
			{Index: 0, RelevanceScore: 0.61},
			{Index: 9, RelevanceScore: 0.30},
			{Index: 4, RelevanceScore: 0.12},
		}, nil
	}}

	resp, err := newTestService(repo, emb, rr).Search(context.Background(), mustRequest(t, true, 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Count != 5 || len(resp.Results) != 5 || !resp.Reranked {
		t.Fatalf("count=%d reranked=%v, want 5/true", resp.Count, resp.Reranked)
	}
	if want := []string{"h7", "h2", "h0", "h9", "h4"}; !reflect.DeepEqual(ids(resp.Results), want) {
		t.Errorf("order = %v, want %v", ids(resp.Results), want)
	}
	prev := 2.0
	for _, r := range resp.Results {
		if r.RerankScore() == nil {
			t.Fatalf("%s: missing rerank score", r.ID())
		}
		if *r.RerankScore() > prev {
			t.Errorf("rerank scores not descending at %s", r.ID())
		}
		prev = *r.RerankScore()
	}

	if emb.calls != 1 || emb.texts[0] != "beach house in Honolulu" {
		t.Errorf("query embedding calls=%d texts=%v", emb.calls, emb.texts)
	}
	if rr.topK != 5 || len(rr.documents) != 10 {
		t.Errorf("rerank topK=%d docs=%d", rr.topK, len(rr.documents))
	}
	if rr.documents[0] != "Listing h0\n\nHouse" {
		t.Errorf("unexpected rerank text %q", rr.documents[0])
	}
	if q := repo.lastQuery; q.NumCandidates != 150 || q.Limit != 10 || q.MinReviewScore != nil || !q.Full {
		t.Errorf("unexpected store query: %+v", q)
	}
}

func TestSearch_ThresholdGate(t *testing.T) {
	for _, full := range []bool{true, false} {
		t.Run(fmt.Sprintf("full=%v", full), func(t *testing.T) {
			repo := &mockRepo{fn: tenHits}
			resp, err := newTestService(repo, &mockEmbedder{}, nil).
				Search(context.Background(), mustRequest(t, full, 0.68, nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// Scores are 0.90, 0.85, ..., 0.45.
			if resp.Count != 5 {
				t.Errorf("count = %d, want 5", resp.Count)
			}
			for _, r := range resp.Results {
				if r.Score() < 0.68 {
					t.Errorf("%s scored %f below threshold", r.ID(), r.Score())
				}
				if !full && r.Listing() != nil {
					t.Errorf("%s: minimal projection must not carry the listing", r.ID())
				}
			}
			if repo.lastQuery.Full != full {
				t.Errorf("without a reranker the store projection must follow the request")
			}
		})
	}
}

func TestSearch_MinReviewScorePushedDown(t *testing.T) {
	repo := &mockRepo{fn: func(q request.KNN) ([]result.Result, error) {
		return []result.Result{hit("good", 0.8, f64(4))}, nil
	}}

	_, err := newTestService(repo, &mockEmbedder{}, nil).
		Search(context.Background(), mustRequest(t, true, 0, intPtr(4)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastQuery.MinReviewScore == nil || *repo.lastQuery.MinReviewScore != 4 {
		t.Errorf("filter not pushed to the store: %+v", repo.lastQuery)
	}
}

func TestSearch_RerankFailureFallsBack(t *testing.T) {
	repo := &mockRepo{fn: tenHits}
	rr := &mockReranker{fn: func([]string, int) ([]domain.RerankedItem, error) {
		return nil, fmt.Errorf("quota: %w", domain.ErrRerankService)
	}}

	resp, err := newTestService(repo, &mockEmbedder{}, rr).
		Search(context.Background(), mustRequest(t, true, 0.58, nil))
	if err != nil {
		t.Fatalf("rerank failure must not fail the search: %v", err)
	}
	if resp.Reranked {
		t.Error("expected unranked fallback")
	}
	if want := []string{"h0", "h1", "h2", "h3", "h4", "h5", "h6"}; !reflect.DeepEqual(ids(resp.Results), want) {
		t.Errorf("fallback = %v, want thresholded vector order %v", ids(resp.Results), want)
	}
	for _, r := range resp.Results {
		if r.RerankScore() != nil {
			t.Errorf("%s: fallback results must not carry rerank scores", r.ID())
		}
	}
}

func TestSearch_EmptyRerankFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.RerankedItem
	}{
		{"no items", nil},
		{"only invalid indexes", []domain.RerankedItem{{Index: 42, RelevanceScore: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{fn: tenHits}
			rr := &mockReranker{fn: func([]string, int) ([]domain.RerankedItem, error) { return tc.items, nil }}

			resp, err := newTestService(repo, &mockEmbedder{}, rr).
				Search(context.Background(), mustRequest(t, true, 0, nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Reranked || resp.Count != 10 {
				t.Errorf("reranked=%v count=%d, want fallback with 10", resp.Reranked, resp.Count)
			}
		})
	}
}

func TestSearch_DuplicateRerankIndexesIgnored(t *testing.T) {
	repo := &mockRepo{fn: tenHits}
	rr := &mockReranker{fn: func([]string, int) ([]domain.RerankedItem, error) {
		return []domain.RerankedItem{{Index: 3, RelevanceScore: 0.9}, {Index: 3, RelevanceScore: 0.8}}, nil
	}}

	resp, err := newTestService(repo, &mockEmbedder{}, rr).
		Search(context.Background(), mustRequest(t, true, 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(resp.Results), []string{"h3"}) {
		t.Errorf("results = %v", ids(resp.Results))
	}
}

func TestSearch_MinimalProjectionWithReranker(t *testing.T) {
	repo := &mockRepo{fn: tenHits}
	rr := &mockReranker{fn: func(docs []string, _ int) ([]domain.RerankedItem, error) {
		return []domain.RerankedItem{{Index: 1, RelevanceScore: 0.7}}, nil
	}}

	resp, err := newTestService(repo, &mockEmbedder{}, rr).
		Search(context.Background(), mustRequest(t, false, 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.lastQuery.Full {
		t.Error("reranking needs full listings from the store")
	}
	if rr.documents[1] == "" {
		t.Error("rerank text must be built from listing attributes")
	}
	r := resp.Results[0]
	if r.Listing() != nil || r.ID() != "h1" || r.ReviewScoreValue() == nil || r.RerankScore() == nil {
		t.Errorf("unexpected minimal result: id=%s listing=%v", r.ID(), r.Listing())
	}
}

func TestSearch_NoCandidatesSkipsRerank(t *testing.T) {
	repo := &mockRepo{fn: func(request.KNN) ([]result.Result, error) { return nil, nil }}
	rr := &mockReranker{fn: func([]string, int) ([]domain.RerankedItem, error) { return nil, nil }}

	resp, err := newTestService(repo, &mockEmbedder{}, rr).
		Search(context.Background(), mustRequest(t, true, 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 0 || rr.calls != 0 {
		t.Errorf("count=%d rerankCalls=%d, want 0/0", resp.Count, rr.calls)
	}
}

func TestSearch_EmbeddingFailureIsFatal(t *testing.T) {
	repo := &mockRepo{fn: tenHits}
	emb := &mockEmbedder{err: errors.New("dial tcp: timeout")}

	_, err := newTestService(repo, emb, nil).Search(context.Background(), mustRequest(t, true, 0, nil))
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if repo.lastQuery != nil {
		t.Error("store must not be queried without a query vector")
	}
}

func TestSearch_StoreFailureIsFatal(t *testing.T) {
	repo := &mockRepo{fn: func(request.KNN) ([]result.Result, error) {
		return nil, fmt.Errorf("%w: connection refused", domain.ErrStore)
	}}

	_, err := newTestService(repo, &mockEmbedder{}, nil).Search(context.Background(), mustRequest(t, true, 0, nil))
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}
