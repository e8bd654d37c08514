package chi

import (
	"context"

	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
	"github.com/kailas-cloud/listingsearch/internal/domain/search/request"
	domusage "github.com/kailas-cloud/listingsearch/internal/domain/usage"
	backfilluc "github.com/kailas-cloud/listingsearch/internal/usecase/backfill"
	documentuc "github.com/kailas-cloud/listingsearch/internal/usecase/document"
	healthuc "github.com/kailas-cloud/listingsearch/internal/usecase/health"
	indexuc "github.com/kailas-cloud/listingsearch/internal/usecase/index"
	searchuc "github.com/kailas-cloud/listingsearch/internal/usecase/search"
)

// Backfiller runs embedding backfills.
type Backfiller interface {
	RunBackfill(ctx context.Context, batchSize int) (backfilluc.Result, error)
	Progress() backfilluc.ProgressSnapshot
}

// Searcher runs retrieval requests.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (searchuc.Response, error)
}

// IndexProvisioner creates the vector index.
type IndexProvisioner interface {
	Provision(ctx context.Context) (indexuc.Result, error)
}

// DocumentReader reads stored listings.
type DocumentReader interface {
	Get(ctx context.Context, id string) (*domlisting.Listing, error)
	Stats(ctx context.Context) (documentuc.Stats, error)
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
