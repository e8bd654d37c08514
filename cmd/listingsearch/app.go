package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/config"
	dbRedis "github.com/kailas-cloud/listingsearch/internal/db/redis"
	domindex "github.com/kailas-cloud/listingsearch/internal/domain/index"
	logpkg "github.com/kailas-cloud/listingsearch/internal/logger"
	"github.com/kailas-cloud/listingsearch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/listingsearch/internal/repository/budget"
	"github.com/kailas-cloud/listingsearch/internal/repository/embcache"
	listingrepo "github.com/kailas-cloud/listingsearch/internal/repository/listing"
	chiTransport "github.com/kailas-cloud/listingsearch/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/listingsearch/internal/transport/openai"
	"github.com/kailas-cloud/listingsearch/internal/transport/rerank"
	backfilluc "github.com/kailas-cloud/listingsearch/internal/usecase/backfill"
	documentuc "github.com/kailas-cloud/listingsearch/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/listingsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/listingsearch/internal/usecase/health"
	indexuc "github.com/kailas-cloud/listingsearch/internal/usecase/index"
	searchuc "github.com/kailas-cloud/listingsearch/internal/usecase/search"
	usageuc "github.com/kailas-cloud/listingsearch/internal/usecase/usage"
	"github.com/kailas-cloud/listingsearch/internal/version"
)

// app is the composition root shared by every subcommand.
type app struct {
	env       string
	cfg       config.Config
	logger    *zap.Logger
	store     *dbRedis.Store
	backfill  *backfilluc.Service
	search    *searchuc.Service
	index     *indexuc.Service
	documents *documentuc.Service
	usage     *usageuc.Service
	health    *healthuc.Service
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	env := config.GetEnv()

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting listingsearch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("listing_prefix", cfg.Storage.ListingPrefix()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRerankMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	spec, err := domindex.NewSpec(
		cfg.Index.Dimensions, cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct, cfg.Index.FilterableReviewScore,
	)
	if err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("index config: %w", err)
	}

	a := &app{env: env, cfg: cfg, logger: logger, store: store}
	a.wire(ctx, spec)
	return a, nil
}

// wire builds repositories, the embedder chain and services.
func (a *app) wire(ctx context.Context, spec domindex.Spec) {
	cfg, logger := a.cfg, a.logger

	listings := listingrepo.New(a.store, listingrepo.Config{
		KeyPrefix: cfg.Storage.ListingPrefix(),
		IndexName: cfg.Index.Name,

		FilterableReviewScore: cfg.Index.FilterableReviewScore,
	})

	// One BudgetTracker shared by the embedder and the usage service.
	var budget *embeddinguc.BudgetTracker
	bc := cfg.Embedding.Budget
	if bc.DailyTokenLimit > 0 || bc.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if bc.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, logger,
		).WithStore(ctx, budgetrepo.New(a.store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embeddinguc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	// One pacer for the provider: backfill batches and queries share its quota.
	pacer := embeddinguc.NewPacer(cfg.Embedding.RequestsPerMinute)
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, budgetChecker, logger,
	).WithPacer(pacer)

	// Query path: cache outermost so hits skip pacing and budget.
	var queryEmbedder searchuc.Embedder = instrumented
	if cfg.Embedding.QueryCacheTTLSec > 0 {
		queryEmbedder = embcache.New(instrumented, a.store, embcache.Config{
			Model: cfg.Embedding.Model,
			TTL:   time.Duration(cfg.Embedding.QueryCacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Pass nil interface when reranking is disabled.
	var reranker searchuc.Reranker
	if cfg.Rerank.Enabled {
		reranker = rerank.NewClient(&rerank.Config{
			APIKey:  cfg.Rerank.APIKey,
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
			Logger:  logger,
		})
	}

	logger.Info("Embedding pipeline ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("requests_per_minute", cfg.Embedding.RequestsPerMinute),
		zap.Bool("query_cache", cfg.Embedding.QueryCacheTTLSec > 0),
		zap.Bool("rerank", cfg.Rerank.Enabled),
	)

	a.backfill = backfilluc.New(listings, instrumented, backfilluc.Config{
		MaxBatchSize:  cfg.Backfill.MaxBatchSize,
		MaxIterations: cfg.Backfill.MaxIterations,
		RetryAttempts: uint(cfg.Backfill.RetryAttempts), //nolint:gosec // validated positive by config defaults
		RetryInterval: time.Duration(cfg.Backfill.RetryIntervalMs) * time.Millisecond,
	}, logger)
	a.search = searchuc.New(listings, queryEmbedder, reranker, logger)
	a.index = indexuc.New(listings, spec, logger)
	a.documents = documentuc.New(listings)
	a.usage = usageuc.New(budgetReader)
	a.health = healthuc.New(a.store, base, logger)
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	server := chiTransport.NewServer(
		a.backfill, a.search, a.index, a.documents, a.usage, a.health,
		chiTransport.Config{
			APIKeys:          cfg.Auth.APIKeys,
			DefaultBatchSize: cfg.Backfill.DefaultBatchSize,
			Search: chiTransport.SearchDefaults{
				NumCandidates:       cfg.Search.NumCandidates,
				Limit:               cfg.Search.Limit,
				TopK:                cfg.Search.TopK,
				SimilarityThreshold: cfg.Search.SimilarityThreshold,
			},
		},
		a.logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}
