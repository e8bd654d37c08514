package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/listingsearch/internal/db"
)

// ScanPage runs a single SCAN step from cursor.
func (s *Store) ScanPage(
	ctx context.Context, cursor uint64, pattern, keyType string, count int64,
) (db.ScanPage, error) {
	base := s.b().Scan().Cursor(cursor).Match(pattern).Count(count)

	var cmd rueidis.Completed
	if keyType != "" {
		cmd = base.Type(keyType).Build()
	} else {
		cmd = base.Build()
	}

	entry, err := s.do(ctx, cmd).AsScanEntry()
	if err != nil {
		return db.ScanPage{}, &db.Error{Op: db.OpScan, Err: err}
	}
	return db.ScanPage{Keys: entry.Elements, Cursor: entry.Cursor}, nil
}
