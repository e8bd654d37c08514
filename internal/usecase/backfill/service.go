// Package backfill embeds every listing that has no vector yet.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/domain"
	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
	"github.com/kailas-cloud/listingsearch/internal/metrics"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultBatchSize     = 50
	DefaultMaxBatchSize  = domain.MaxEmbeddingBatchSize
	DefaultMaxIterations = 100_000
	DefaultRetryAttempts = 3
	DefaultRetryInterval = 2 * time.Second
)

// Config tunes the backfill loop.
type Config struct {
	// MaxBatchSize is the largest batch size a caller may request, at most
	// domain.MaxEmbeddingBatchSize.
	MaxBatchSize int
	// MaxIterations bounds the number of batches per run.
	MaxIterations int
	// RetryAttempts is how many times a rate-limited embedding call is tried in total.
	RetryAttempts uint
	// RetryInterval is the first backoff delay after a rate-limited call.
	RetryInterval time.Duration
}

// Result is the outcome of one run.
type Result struct {
	TotalEligible int
	Embedded      int
	Message       string
}

// Service runs the find -> embed -> conditional write loop.
type Service struct {
	repo     Repository
	embedder Embedder
	cfg      Config
	progress Progress
	logger   *zap.Logger
}

// New creates a backfill service.
func New(repo Repository, embedder Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > domain.MaxEmbeddingBatchSize {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Service{repo: repo, embedder: embedder, cfg: cfg, logger: logger}
}

// Progress returns the counters of the current or last run.
func (s *Service) Progress() ProgressSnapshot {
	return s.progress.Snapshot()
}

// RunBackfill embeds all listings without an embedding, batchSize at a time.
// An embedding failure skips its batch for the rest of the run; store failures abort the run.
// Only one run may be active per Service.
func (s *Service) RunBackfill(ctx context.Context, batchSize int) (Result, error) {
	if batchSize <= 0 {
		return Result{}, domain.NewValidationError("batch_size", "must be positive")
	}
	if batchSize > s.cfg.MaxBatchSize {
		return Result{}, domain.NewValidationError("batch_size", fmt.Sprintf("must be at most %d", s.cfg.MaxBatchSize))
	}
	if !s.progress.running.CompareAndSwap(false, true) {
		return Result{}, domain.ErrBackfillRunning
	}
	defer s.progress.running.Store(false)

	totalEligible, err := s.repo.CountUnembedded(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count unembedded: %w", err)
	}
	s.progress.reset(totalEligible)
	metrics.BackfillEligibleDocuments.Set(float64(totalEligible))

	log := s.logger.With(zap.Int("batch_size", batchSize), zap.Int("total_eligible", totalEligible))
	log.Info("Backfill started")

	embedded, err := s.drain(ctx, log, batchSize)
	if err != nil {
		log.Error("Backfill aborted", zap.Int("embedded", embedded), zap.Error(err))
		return Result{}, err
	}

	withEmbedding, err := s.repo.CountEmbedded(ctx)
	if err != nil {
		log.Warn("Failed to count embedded listings, reporting this run only", zap.Error(err))
		withEmbedding = embedded
	}

	log.Info("Backfill finished",
		zap.Int("embedded", embedded),
		zap.Int("batches", int(s.progress.batches.Load())),
		zap.Int("skipped_batches", int(s.progress.skippedBatches.Load())),
		zap.Int("listings_with_embedding", withEmbedding),
	)

	return Result{
		TotalEligible: totalEligible,
		Embedded:      embedded,
		Message:       fmt.Sprintf("Documents updated with embeddings: %d", withEmbedding),
	}, nil
}

// drain loops until no eligible listing is left or MaxIterations batches ran.
func (s *Service) drain(ctx context.Context, log *zap.Logger, batchSize int) (int, error) {
	skip := make(map[string]struct{})
	embedded := 0

	for iter := 0; ; iter++ {
		if iter == s.cfg.MaxIterations {
			log.Warn("Backfill stopped at iteration limit", zap.Int("max_iterations", s.cfg.MaxIterations))
			return embedded, nil
		}

		batch, err := s.repo.FindUnembedded(ctx, batchSize, skip)
		if err != nil {
			metrics.BackfillBatchesTotal.WithLabelValues("failed").Inc()
			return embedded, fmt.Errorf("find unembedded: %w", err)
		}
		if len(batch) == 0 {
			return embedded, nil
		}
		s.progress.batches.Add(1)

		n, err := s.processBatch(ctx, log.With(zap.Int("batch", iter+1)), batch, skip)
		embedded += n
		s.progress.embedded.Add(int64(n))
		metrics.BackfillDocumentsEmbeddedTotal.Add(float64(n))
		if err != nil {
			metrics.BackfillBatchesTotal.WithLabelValues("failed").Inc()
			return embedded, err
		}
	}
}

// processBatch embeds and writes one batch. Listings that cannot be embedded go into skip.
func (s *Service) processBatch(
	ctx context.Context, log *zap.Logger, batch []*domlisting.Listing, skip map[string]struct{},
) (int, error) {
	texts := make([]string, len(batch))
	for i, l := range batch {
		texts[i] = domlisting.EmbeddableText(l)
	}

	res, err := s.embed(ctx, log, texts)
	if err == nil && len(res.Embeddings) != len(batch) {
		err = fmt.Errorf("got %d vectors for %d listings: %w", len(res.Embeddings), len(batch), domain.ErrEmbeddingService)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("embed batch: %w", ctxErr)
		}
		s.skipBatch(batch, skip)
		log.Warn("Skipping batch after embedding failure", zap.Int("listings", len(batch)), zap.Error(err))
		return 0, nil
	}

	updates := make([]domlisting.EmbeddingUpdate, 0, len(batch))
	for i, l := range batch {
		if err := domain.ValidateVector(res.Embeddings[i]); err != nil {
			skip[l.ID] = struct{}{}
			log.Warn("Dropping invalid vector", zap.String("listing_id", l.ID), zap.Error(err))
			continue
		}
		updates = append(updates, domlisting.EmbeddingUpdate{ID: l.ID, Vector: res.Embeddings[i]})
	}

	written, err := s.repo.BulkSetEmbeddings(ctx, updates)
	if err != nil {
		return written.Modified, fmt.Errorf("write embeddings: %w", err)
	}

	metrics.BackfillBatchesTotal.WithLabelValues("committed").Inc()
	log.Info("Batch committed",
		zap.Int("listings", len(batch)),
		zap.Int("matched", written.Matched),
		zap.Int("modified", written.Modified),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return written.Modified, nil
}

// embed calls the provider once, retrying with exponential backoff only while it reports
// rate limiting.
func (s *Service) embed(ctx context.Context, log *zap.Logger, texts []string) (domain.BatchEmbeddingResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryInterval

	return backoff.Retry(ctx,
		func() (domain.BatchEmbeddingResult, error) {
			res, err := s.embedder.BatchEmbed(ctx, texts)
			if err != nil && !errors.Is(err, domain.ErrRateLimited) {
				return res, backoff.Permanent(err)
			}
			return res, err
		},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.cfg.RetryAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Info("Embedding rate limited, backing off", zap.Duration("wait", wait), zap.Error(err))
		}),
	)
}

func (s *Service) skipBatch(batch []*domlisting.Listing, skip map[string]struct{}) {
	for _, l := range batch {
		skip[l.ID] = struct{}{}
	}
	s.progress.skippedBatches.Add(1)
	metrics.BackfillBatchesTotal.WithLabelValues("skipped").Inc()
}
