package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/listingsearch/internal/db"
	"github.com/kailas-cloud/listingsearch/internal/domain"
	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// Store attribute paths and aliases.
const (
	embeddingPath        = "$.embedding"
	embeddingAlias       = "embedding"
	reviewScoreValuePath = "$.review_scores.review_scores_value"
	// ReviewScoreValueAttr is the index attribute the review score filter is pushed down to.
	ReviewScoreValueAttr = "review_scores_value"

	defaultScanCount = 500
)

// store is the consumer interface for listing documents (ISP).
type store interface {
	ScanPage(ctx context.Context, cursor uint64, pattern, keyType string, count int64) (db.ScanPage, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string, path string) ([][]byte, error)
	JSONTypeMulti(ctx context.Context, keys []string, path string) ([]string, error)
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []db.JSONSetResult
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config locates the listing collection in the store.
type Config struct {
	// KeyPrefix is prepended to listing IDs, e.g. "airbnb:listings:".
	KeyPrefix string
	// IndexName is the FT index over KeyPrefix.
	IndexName string
	// ScanCount is the SCAN COUNT hint per round-trip.
	ScanCount int64
	// FilterableReviewScore mirrors the index definition: without the numeric
	// review_scores_value attribute, review score filters are rejected.
	FilterableReviewScore bool
}

// Repo is the document store gateway for listings.
type Repo struct {
	store store
	cfg   Config
}

// New creates a listing repository.
func New(s store, cfg Config) *Repo {
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = defaultScanCount
	}
	return &Repo{store: s, cfg: cfg}
}

// IndexName returns the configured vector index name.
func (r *Repo) IndexName() string { return r.cfg.IndexName }

// CountUnembedded returns how many listings have no embedding attribute.
func (r *Repo) CountUnembedded(ctx context.Context) (int, error) {
	c, err := r.census(ctx)
	if err != nil {
		return 0, err
	}
	return c.unembedded, nil
}

// CountEmbedded returns how many listings carry an embedding attribute.
func (r *Repo) CountEmbedded(ctx context.Context) (int, error) {
	c, err := r.census(ctx)
	if err != nil {
		return 0, err
	}
	return c.embedded, nil
}

type census struct {
	embedded   int
	unembedded int
}

func (r *Repo) census(ctx context.Context) (census, error) {
	var c census
	err := r.scanEmbeddingState(ctx, func(_ []string, states []string) bool {
		for _, st := range states {
			switch st {
			case db.JSONTypeNoKey:
			case db.JSONTypeAbsent:
				c.unembedded++
			default:
				c.embedded++
			}
		}
		return true
	})
	return c, err
}

// FindUnembedded returns up to limit listings without an embedding, in keyspace order.
// IDs in skip are passed over. Every call starts a fresh scan, so listings embedded
// since the previous call are never returned again. Documents that are not JSON objects
// cannot be embedded: they are added to skip (when non-nil) and the scan moves past them.
func (r *Repo) FindUnembedded(
	ctx context.Context, limit int, skip map[string]struct{},
) ([]*domlisting.Listing, error) {
	if limit <= 0 {
		return nil, nil
	}

	undecodable := make(map[string]struct{})
	for {
		keys, err := r.unembeddedKeys(ctx, limit, skip, undecodable)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}

		raws, err := r.store.JSONGetMulti(ctx, keys, "$")
		if err != nil {
			return nil, fmt.Errorf("%w: fetch listings: %w", domain.ErrStore, err)
		}

		out := make([]*domlisting.Listing, 0, len(keys))
		rejected := 0
		for i, raw := range raws {
			if raw == nil {
				continue // deleted between scan and fetch
			}
			id := r.idFromKey(keys[i])
			l, err := decodeListing(raw, id)
			if err != nil {
				rejected++
				undecodable[id] = struct{}{}
				if skip != nil {
					skip[id] = struct{}{}
				}
				continue
			}
			out = append(out, l)
		}
		// A batch emptied by undecodable documents rescans; the exclusion set only grows.
		if len(out) > 0 || rejected == 0 {
			return out, nil
		}
	}
}

// unembeddedKeys scans for up to limit keys whose embedding is absent and whose ID is in
// neither exclusion set.
func (r *Repo) unembeddedKeys(
	ctx context.Context, limit int, skip, undecodable map[string]struct{},
) ([]string, error) {
	keys := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	err := r.scanEmbeddingState(ctx, func(pageKeys []string, states []string) bool {
		for i, key := range pageKeys {
			if states[i] != db.JSONTypeAbsent {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			id := r.idFromKey(key)
			if _, skipped := skip[id]; skipped {
				continue
			}
			if _, bad := undecodable[id]; bad {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
			if len(keys) == limit {
				return false
			}
		}
		return true
	})
	return keys, err
}

// scanEmbeddingState walks the listing keyspace and reports the JSON type of the
// embedding attribute per page. visit returns false to stop early.
func (r *Repo) scanEmbeddingState(ctx context.Context, visit func(keys, states []string) bool) error {
	pattern := r.cfg.KeyPrefix + "*"
	var cursor uint64
	for {
		page, err := r.store.ScanPage(ctx, cursor, pattern, db.KeyTypeJSON, r.cfg.ScanCount)
		if err != nil {
			return fmt.Errorf("%w: scan %s: %w", domain.ErrStore, pattern, err)
		}
		if len(page.Keys) > 0 {
			states, err := r.store.JSONTypeMulti(ctx, page.Keys, embeddingPath)
			if err != nil {
				return fmt.Errorf("%w: embedding state: %w", domain.ErrStore, err)
			}
			if !visit(page.Keys, states) {
				return nil
			}
		}
		if page.Cursor == 0 {
			return nil
		}
		cursor = page.Cursor
	}
}

// BulkSetEmbeddings writes vectors onto listings that have none yet, as one unordered batch.
// Every update is attempted; a listing that already has an embedding or vanished is left
// alone. Failed items are reported together as a store error after all items ran, and
// the counts still reflect the items that committed.
func (r *Repo) BulkSetEmbeddings(ctx context.Context, updates []domlisting.EmbeddingUpdate) (domlisting.BulkResult, error) {
	if len(updates) == 0 {
		return domlisting.BulkResult{}, nil
	}

	items := make([]db.JSONSetItem, len(updates))
	for i, u := range updates {
		if err := domain.ValidateVector(u.Vector); err != nil {
			return domlisting.BulkResult{}, fmt.Errorf("listing %s: %w", u.ID, err)
		}
		data, err := encodeVector(u.Vector)
		if err != nil {
			return domlisting.BulkResult{}, fmt.Errorf("listing %s: %w", u.ID, err)
		}
		items[i] = db.JSONSetItem{Key: r.key(u.ID), Path: embeddingPath, Data: data, NX: true}
	}

	var res domlisting.BulkResult
	var errs []error
	for _, out := range r.store.JSONSetMulti(ctx, items) {
		switch {
		case out.Err == nil:
			res.Matched++
			if out.Applied {
				res.Modified++
			}
		case errors.Is(out.Err, db.ErrKeyNotFound):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", out.Key, out.Err))
		}
	}
	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %d of %d embedding writes failed: %w",
			domain.ErrStore, len(errs), len(items), errors.Join(errs...))
	}
	return res, nil
}

// Get returns a listing by ID.
func (r *Repo) Get(ctx context.Context, id string) (*domlisting.Listing, error) {
	key := r.key(id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: json.get %s: %w", domain.ErrStore, key, err)
	}
	l, err := decodeListing(raw, id)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStore, key, err)
	}
	return l, nil
}

func (r *Repo) key(id string) string {
	return r.cfg.KeyPrefix + id
}

func (r *Repo) idFromKey(key string) string {
	return strings.TrimPrefix(key, r.cfg.KeyPrefix)
}
