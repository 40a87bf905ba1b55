package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/config"
	dbRedis "github.com/kailas-cloud/paperfeed/internal/db/redis"
	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
	"github.com/kailas-cloud/paperfeed/internal/repository/embcache"
	paperrepo "github.com/kailas-cloud/paperfeed/internal/repository/paper"
	sqliterepo "github.com/kailas-cloud/paperfeed/internal/repository/sqlite"
	openaiTransport "github.com/kailas-cloud/paperfeed/internal/transport/openai"
	candidateuc "github.com/kailas-cloud/paperfeed/internal/usecase/candidate"
	embeddinguc "github.com/kailas-cloud/paperfeed/internal/usecase/embedding"
	expanduc "github.com/kailas-cloud/paperfeed/internal/usecase/expand"
	healthuc "github.com/kailas-cloud/paperfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/paperfeed/internal/usecase/ingest"
	profileuc "github.com/kailas-cloud/paperfeed/internal/usecase/profile"
	recommenduc "github.com/kailas-cloud/paperfeed/internal/usecase/recommend"
	rerankuc "github.com/kailas-cloud/paperfeed/internal/usecase/rerank"
	seenuc "github.com/kailas-cloud/paperfeed/internal/usecase/seen"
	"github.com/kailas-cloud/paperfeed/internal/vectorindex"
)

// paperStore is the storage collaborator both drivers implement.
type paperStore interface {
	Ping(ctx context.Context) error
	SavePapers(ctx context.Context, papers []paper.Paper) error
	GetPapers(ctx context.Context, ids []string) ([]paper.Paper, error)
	RecentPapers(ctx context.Context, limit, offset int) ([]paper.Paper, error)
	RecordSearch(ctx context.Context, userID string, q interaction.SearchQuery) error
	SearchHistory(ctx context.Context, userID string, limit int) ([]interaction.SearchQuery, error)
	RecordView(ctx context.Context, userID, paperID string, at time.Time) error
	UserPaperViews(ctx context.Context, userID string, limit, days int) ([]interaction.PaperView, error)
	ViewedPapers(ctx context.Context, userID string, limit int) ([]interaction.ViewedPaper, error)
}

var (
	_ paperStore = redisPaperStore{}
	_ paperStore = (*sqliterepo.Store)(nil)
)

// redisPaperStore adds Ping to the Redis repository.
type redisPaperStore struct {
	*paperrepo.Repo
	db *dbRedis.Store
}

func (s redisPaperStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// app is the composition root shared by the CLI commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store     paperStore
	index     *vectorindex.Index
	embedder  *openaiTransport.Embedder
	completer *openaiTransport.BreakerCompleter

	ingest    *ingestuc.Service
	expander  *expanduc.Service
	recommend *recommenduc.Service
	health    *healthuc.Service

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func registerMetrics() {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIndexMetrics()
	metrics.RegisterRecommendMetrics()
	metrics.RegisterHTTPMetrics()
}

// buildApp wires every component from cfg.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	registerMetrics()

	var kv embcache.Store
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:        cfg.Storage.Addrs,
			Username:     cfg.Storage.Username,
			Password:     cfg.Storage.Password,
			DB:           cfg.Storage.DB,
			DisableCache: cfg.Storage.DisableCache,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		if err := rs.WaitForReady(ctx, time.Duration(cfg.Storage.ReadinessTimeout)*time.Second); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		repo := paperrepo.New(rs, paperrepo.Limits{
			MaxSearches: cfg.Storage.MaxSearches,
			MaxViews:    cfg.Storage.MaxViews,
		})
		a.store = redisPaperStore{Repo: repo, db: rs}
		kv = rs
	case config.DriverSQLite:
		ss, err := sqliterepo.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ss.Close() })
		a.store = ss
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	idx, err := vectorindex.Open(cfg.Index.DataDir, cfg.Embedding.Dimensions, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.index = idx
	logger.Info("index ready",
		zap.String("dir", cfg.Index.DataDir),
		zap.Int("vectors", idx.Len()),
		zap.String("state", idx.State().String()))

	a.embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	embedder := buildEmbedder(a.embedder, kv, cfg.Embedding, logger)
	queryEmbedder := withInstruction(embedder, cfg.Embedding.QueryInstruction)
	docEmbedder := withInstruction(embedder, cfg.Embedding.DocumentInstruction)

	runnerCfg := embeddinguc.RunnerConfig{
		BatchSize: cfg.Embedding.BatchSize,
		Delay:     cfg.Embedding.BatchDelay(),
		Workers:   cfg.Embedding.Workers,
	}
	queryRunner := embeddinguc.NewRunner(queryEmbedder, runnerCfg)
	docRunner := embeddinguc.NewRunner(docEmbedder, runnerCfg)

	a.completer = openaiTransport.NewBreakerCompleter(
		openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:  cfg.Completion.APIKey,
			BaseURL: cfg.Completion.BaseURL,
			Model:   cfg.Completion.Model,
			Logger:  logger,
		}),
		openaiTransport.BreakerConfig{
			Name:                "completion",
			ConsecutiveFailures: uint32(cfg.Completion.BreakerFailures), //nolint:gosec // validated positive
			OpenTimeout:         time.Duration(cfg.Completion.BreakerOpenSec) * time.Second,
			HalfOpenRequests:    uint32(cfg.Completion.BreakerHalfOpenReqs), //nolint:gosec // validated positive
		},
		logger,
	)

	a.expander, err = expanduc.New(a.completer, queryEmbedder, idx, expanduc.Config{
		CompletionTimeout: time.Duration(cfg.Completion.TimeoutSec) * time.Second,
		FanOutTimeout:     time.Duration(cfg.Search.FanOutSec) * time.Second,
		CacheSize:         cfg.Search.CacheEntries,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create expander: %w", err)
	}

	profiles := profileuc.New(a.store, queryRunner, profileuc.Config{
		HalfLifeDays:  cfg.Profile.HalfLifeDays,
		QueryWeight:   cfg.Profile.QueryWeight,
		ViewWeight:    cfg.Profile.ViewWeight,
		AbstractChars: cfg.Profile.AbstractChars,
	})
	candidates := candidateuc.New(idx, a.store, candidateuc.Config{
		PoolMultiplier: cfg.Recommend.PoolMultiplier,
		RecencyScore:   cfg.Recommend.RecencyScore,
	})
	seen := seenuc.New(a.store, cfg.Recommend.SeenLimit, cfg.Recommend.SeenLookbackDays)
	a.recommend = recommenduc.New(profiles, candidates, seen, rerankuc.New(rerankuc.Config{}), recommenduc.Config{
		MaxLimit:    cfg.Recommend.MaxLimit,
		SearchLimit: cfg.Profile.SearchLimit,
		ViewLimit:   cfg.Profile.ViewLimit,
	})

	a.ingest = ingestuc.New(a.store, idx, docRunner, 0)
	a.health = healthuc.New(a.store,
		healthuc.WithEmbedding(a.embedder),
		healthuc.WithCompletion(a.completer),
		healthuc.WithIndex(idx),
	)
	return a, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	base *openaiTransport.Embedder,
	kv embcache.Store,
	cfg config.EmbeddingConfig,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if kv != nil && cfg.Cache {
		embedder = embcache.New(base, kv, embcache.Options{
			Model:      cfg.Model,
			TTL:        time.Duration(cfg.CacheTTLHrs) * time.Hour,
			CacheTotal: metrics.EmbeddingCacheTotal,
		}, logger)
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, "openai", cfg.Model, logger)
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
