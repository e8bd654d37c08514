package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/listingsearch/internal/db"
)

// JSONGet retrieves a JSON document by key and optional paths.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	args := make([]string, len(paths))
	copy(args, paths)

	cmd := s.b().Arbitrary("JSON.GET").Keys(key).Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}

// JSONGetMulti fetches one path from many documents with a single JSON.MGET.
// Missing keys yield a nil entry at their position.
func (s *Store) JSONGetMulti(ctx context.Context, keys []string, path string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmd := s.b().Arbitrary("JSON.MGET").Keys(keys...).Args(path).Build()
	arr, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONMGet, Err: err}
	}
	if len(arr) != len(keys) {
		return nil, &db.Error{
			Op:  db.OpJSONMGet,
			Err: fmt.Errorf("got %d replies for %d keys", len(arr), len(keys)),
		}
	}

	out := make([][]byte, len(keys))
	for i := range arr {
		if arr[i].IsNil() {
			continue
		}
		str, err := arr[i].ToString()
		if err != nil {
			return nil, &db.Error{Op: db.OpJSONMGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = []byte(str)
	}
	return out, nil
}

// JSONTypeMulti pipelines JSON.TYPE for many keys.
// Each entry is the RedisJSON type name at path, db.JSONTypeAbsent when the path
// does not exist, or db.JSONTypeNoKey when the key is gone.
func (s *Store) JSONTypeMulti(ctx context.Context, keys []string, path string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Arbitrary("JSON.TYPE").Keys(key).Args(path).Build()
	}

	out := make([]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		arr, err := res.ToArray()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				out[i] = db.JSONTypeNoKey
				continue
			}
			return nil, &db.Error{Op: db.OpJSONType, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		if len(arr) == 0 {
			out[i] = db.JSONTypeAbsent
			continue
		}
		typ, err := arr[0].ToString()
		if err != nil {
			return nil, &db.Error{Op: db.OpJSONType, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = typ
	}
	return out, nil
}

// JSONSetMulti pipelines JSON.SET for many items in one round-trip.
// Every item is attempted; failures are reported per item and never stop the others.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []db.JSONSetResult {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		args := []string{item.Path, string(item.Data)}
		if item.NX {
			args = append(args, "NX")
		}
		cmds[i] = s.b().Arbitrary("JSON.SET").Keys(item.Key).Args(args...).Build()
	}

	out := make([]db.JSONSetResult, len(items))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		out[i] = db.JSONSetResult{Key: items[i].Key}
		err := res.Error()
		switch {
		case err == nil:
			out[i].Applied = true
		case rueidis.IsRedisNil(err):
			// NX condition not met: the path already exists.
		case isRedisErr(err, "new objects must be created at the root"):
			out[i].Err = db.ErrKeyNotFound
		default:
			out[i].Err = &db.Error{Op: db.OpJSONSet, Err: err}
		}
	}
	return out
}
