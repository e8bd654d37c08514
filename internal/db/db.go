package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	JSONStore
	KeyScanner
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONSetItem holds a single key+path+data triple for pipelined JSON.SET.
// NX restricts the write to paths that do not exist yet.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
	NX   bool
}

// JSONSetResult is the per-item outcome of a pipelined JSON.SET.
// Applied is false with a nil Err when an NX condition rejected the write.
type JSONSetResult struct {
	Key     string
	Applied bool
	Err     error
}

// JSONStore provides JSON document operations.
// JSONGetMulti returns nil for keys that do not exist.
type JSONStore interface {
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string, path string) ([][]byte, error)
	JSONTypeMulti(ctx context.Context, keys []string, path string) ([]string, error)
	JSONSetMulti(ctx context.Context, items []JSONSetItem) []JSONSetResult
}

// ScanPage is one SCAN round-trip: the keys it returned and the cursor to resume from.
// Cursor 0 means the iteration is complete.
type ScanPage struct {
	Keys   []string
	Cursor uint64
}

// KeyTypeJSON is the SCAN TYPE of RedisJSON documents.
const KeyTypeJSON = "ReJSON-RL"

// JSON.TYPE outcomes that are not RedisJSON type names.
const (
	// JSONTypeAbsent means the key exists but the path does not.
	JSONTypeAbsent = ""
	// JSONTypeNoKey means the key does not exist.
	JSONTypeNoKey = "nokey"
)

// KeyScanner iterates the keyspace incrementally.
// An empty keyType scans keys of every type.
type KeyScanner interface {
	ScanPage(ctx context.Context, cursor uint64, pattern, keyType string, count int64) (ScanPage, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector similarity search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
