package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/listingsearch/internal/db"
)

type call struct {
	key string
	ttl time.Duration
	nx  bool
}

type mockStore struct {
	values  map[string][]byte
	getErr  error
	incrErr error
	incrs   map[string]int64
	expires []call
}

func newMockStore() *mockStore {
	return &mockStore{values: map[string][]byte{}, incrs: map[string]int64{}}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.incrs[key] += val
	return nil
}

func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.expires = append(m.expires, call{key: key, ttl: ttl, nx: nx})
	return nil
}

func TestStore_IncrBySetsWindowTTL(t *testing.T) {
	ms := newMockStore()
	s := New(ms, time.Hour, 2*time.Hour)

	keys := []string{
		"listingsearch:budget:gemini:daily:2026-10-18",
		"listingsearch:budget:gemini:monthly:2026-10",
	}
	for _, k := range keys {
		if err := s.IncrBy(context.Background(), k, 7); err != nil {
			t.Fatalf("IncrBy(%s): %v", k, err)
		}
	}

	if ms.incrs[keys[0]] != 7 || ms.incrs[keys[1]] != 7 {
		t.Errorf("unexpected increments: %v", ms.incrs)
	}
	want := []call{{keys[0], time.Hour, true}, {keys[1], 2 * time.Hour, true}}
	if len(ms.expires) != len(want) {
		t.Fatalf("expected %d EXPIRE calls, got %d", len(want), len(ms.expires))
	}
	for i, w := range want {
		if ms.expires[i] != w {
			t.Errorf("expire[%d] = %+v, want %+v", i, ms.expires[i], w)
		}
	}
}

func TestStore_IncrByError(t *testing.T) {
	ms := newMockStore()
	ms.incrErr = errors.New("readonly replica")
	s := New(ms, 0, 0)

	if err := s.IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Fatal("expected error")
	}
	if len(ms.expires) != 0 {
		t.Error("EXPIRE must not run after a failed INCRBY")
	}
}

func TestStore_Get(t *testing.T) {
	ms := newMockStore()
	ms.values["present"] = []byte("1234")
	ms.values["garbage"] = []byte("abc")
	s := New(ms, 0, 0)

	if v, err := s.Get(context.Background(), "present"); err != nil || v != 1234 {
		t.Errorf("Get(present) = %d, %v", v, err)
	}
	if v, err := s.Get(context.Background(), "missing"); err != nil || v != 0 {
		t.Errorf("Get(missing) = %d, %v; want 0, nil", v, err)
	}
	if _, err := s.Get(context.Background(), "garbage"); err == nil {
		t.Error("expected parse error")
	}

	ms.getErr = errors.New("timeout")
	if _, err := s.Get(context.Background(), "present"); err == nil {
		t.Error("expected store error")
	}
}

func TestNew_DefaultTTLs(t *testing.T) {
	s := New(newMockStore(), 0, 0)
	if s.dailyTTL != DefaultDailyTTL || s.monthlyTTL != DefaultMonthlyTTL {
		t.Errorf("unexpected defaults: %v %v", s.dailyTTL, s.monthlyTTL)
	}
}
