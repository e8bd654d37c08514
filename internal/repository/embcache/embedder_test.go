package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    testVector(0.1),
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		if len(value) != domain.EmbeddingDimensions*4 {
			t.Errorf("cached %d bytes, want %d", len(value), domain.EmbeddingDimensions*4)
		}
		return nil
	}

	result, err := ce.Embed(context.Background(), "cozy loft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.1 || result.TotalTokens != 10 {
		t.Fatalf("unexpected result: tokens=%d first=%f", result.TotalTokens, result.Embedding[0])
	}
	if !strings.HasPrefix(setKey, "listingsearch:emb_cache:text-embedding-004:") {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: testVector(0.1)}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes(testVector(0.4))
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "cozy loft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got first=%f", result.Embedding[0])
	}
	if result.TotalTokens != 0 {
		t.Errorf("cache hit must report zero tokens, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("inner embedder called on hit")
	}
}

func TestEmbed_StaleDimensionsAreMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: testVector(0.1)}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return vectorToCacheBytes([]float32{0.4, 0.5}), nil
	}

	result, err := ce.Embed(context.Background(), "cozy loft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || result.Embedding[0] != 0.1 {
		t.Fatalf("expected fresh embedding, calls=%d", inner.calls)
	}
}

func TestEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: testVector(0.1)}}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ms := &mockKVStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
		setFn: func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
			return errors.New("connection refused")
		},
	}
	ce := New(inner, ms, Config{Model: "m"}, counter, zap.NewNop())

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("store errors must not fail the request: %v", err)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("error")); got != 2 {
		t.Errorf("error = %v, want 2", got)
	}
	if ce.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want default %v", ce.ttl, DefaultTTL)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingService}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := ce.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if setCalled {
		t.Error("nothing must be cached on error")
	}
}

func TestCacheKey_DependsOnModelAndText(t *testing.T) {
	a := New(nil, &mockKVStore{}, Config{Model: "a"}, nil, zap.NewNop())
	b := New(nil, &mockKVStore{}, Config{Model: "b"}, nil, zap.NewNop())

	if a.cacheKey("x") == b.cacheKey("x") {
		t.Error("keys must differ across models")
	}
	if a.cacheKey("x") == a.cacheKey("y") {
		t.Error("keys must differ across texts")
	}
	if a.cacheKey("x") != a.cacheKey("x") {
		t.Error("keys must be stable")
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
