package listing

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/listingsearch/internal/db"
)

const testPrefix = "airbnb:listings:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	scanPageFn      func(ctx context.Context, cursor uint64, pattern, keyType string, count int64) (db.ScanPage, error)
	jsonGetFn       func(ctx context.Context, key string, paths ...string) ([]byte, error)
	jsonGetMultiFn  func(ctx context.Context, keys []string, path string) ([][]byte, error)
	jsonTypeMultiFn func(ctx context.Context, keys []string, path string) ([]string, error)
	jsonSetMultiFn  func(ctx context.Context, items []db.JSONSetItem) []db.JSONSetResult
	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	searchKNNFn     func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) ScanPage(
	ctx context.Context, cursor uint64, pattern, keyType string, count int64,
) (db.ScanPage, error) {
	if m.scanPageFn != nil {
		return m.scanPageFn(ctx, cursor, pattern, keyType, count)
	}
	return db.ScanPage{}, nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) JSONGetMulti(ctx context.Context, keys []string, path string) ([][]byte, error) {
	if m.jsonGetMultiFn != nil {
		return m.jsonGetMultiFn(ctx, keys, path)
	}
	return make([][]byte, len(keys)), nil
}

func (m *mockStore) JSONTypeMulti(ctx context.Context, keys []string, path string) ([]string, error) {
	if m.jsonTypeMultiFn != nil {
		return m.jsonTypeMultiFn(ctx, keys, path)
	}
	return make([]string, len(keys)), nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []db.JSONSetResult {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	out := make([]db.JSONSetResult, len(items))
	for i, it := range items {
		out[i] = db.JSONSetResult{Key: it.Key, Applied: true}
	}
	return out
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Config{
		KeyPrefix: testPrefix, IndexName: "airbnb:listings:idx", ScanCount: 2, FilterableReviewScore: true,
	}), ms
}

// fakeKeyspace is an in-memory listing collection that drives ScanPage, JSONTypeMulti,
// JSONGetMulti and JSONSetMulti consistently. SCAN pages hold pageSize keys.
type fakeKeyspace struct {
	keys     []string
	docs     map[string]string
	embedded map[string]bool
	pageSize int
}

func newFakeKeyspace(pageSize int, ids ...string) *fakeKeyspace {
	f := &fakeKeyspace{
		docs:     make(map[string]string),
		embedded: make(map[string]bool),
		pageSize: pageSize,
	}
	for _, id := range ids {
		key := testPrefix + id
		f.keys = append(f.keys, key)
		f.docs[key] = `[{"name":"` + id + `"}]`
	}
	return f
}

func (f *fakeKeyspace) install(ms *mockStore) {
	ms.scanPageFn = func(_ context.Context, cursor uint64, pattern, _ string, _ int64) (db.ScanPage, error) {
		prefix := strings.TrimSuffix(pattern, "*")
		start := int(cursor)
		end := min(start+f.pageSize, len(f.keys))
		var keys []string
		for _, k := range f.keys[start:end] {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		next := uint64(end)
		if end >= len(f.keys) {
			next = 0
		}
		return db.ScanPage{Keys: keys, Cursor: next}, nil
	}
	ms.jsonTypeMultiFn = func(_ context.Context, keys []string, _ string) ([]string, error) {
		out := make([]string, len(keys))
		for i, k := range keys {
			switch {
			case f.docs[k] == "":
				out[i] = db.JSONTypeNoKey
			case f.embedded[k]:
				out[i] = "array"
			default:
				out[i] = db.JSONTypeAbsent
			}
		}
		return out, nil
	}
	ms.jsonGetMultiFn = func(_ context.Context, keys []string, _ string) ([][]byte, error) {
		out := make([][]byte, len(keys))
		for i, k := range keys {
			if d, ok := f.docs[k]; ok {
				out[i] = []byte(d)
			}
		}
		return out, nil
	}
	ms.jsonSetMultiFn = func(_ context.Context, items []db.JSONSetItem) []db.JSONSetResult {
		out := make([]db.JSONSetResult, len(items))
		for i, it := range items {
			out[i].Key = it.Key
			switch {
			case f.docs[it.Key] == "":
				out[i].Err = db.ErrKeyNotFound
			case f.embedded[it.Key]:
			default:
				f.embedded[it.Key] = true
				out[i].Applied = true
			}
		}
		return out
	}
}

func testVector() []float32 {
	v := make([]float32, 768)
	for i := range v {
		v[i] = float32(i) / 768
	}
	return v
}
