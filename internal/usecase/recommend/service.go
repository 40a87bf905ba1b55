// Package recommend produces personalized paper pages from a user's history.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	domcand "github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// Config bounds requests and history reads.
type Config struct {
	MaxLimit    int
	SearchLimit int
	ViewLimit   int
}

// DefaultConfig returns a 100-item page cap and 50/50 history limits.
func DefaultConfig() Config {
	return Config{MaxLimit: 100, SearchLimit: 50, ViewLimit: 50}
}

// Item is one recommended paper with its score breakdown.
type Item = domcand.Scored

// Result is a recommendation page.
type Result struct {
	ID         string
	Items      []Item
	Backfilled int
	// Personalized is false when the user had no usable history.
	Personalized bool
}

// Service wires the recommend pipeline.
type Service struct {
	profiles   ProfileBuilder
	candidates CandidateGenerator
	seen       SeenFilter
	reranker   Reranker
	cfg        Config
}

// New creates the recommendation service. Zero config fields take defaults.
func New(profiles ProfileBuilder, candidates CandidateGenerator, seen SeenFilter, reranker Reranker, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.ViewLimit <= 0 {
		cfg.ViewLimit = def.ViewLimit
	}
	return &Service{profiles: profiles, candidates: candidates, seen: seen, reranker: reranker, cfg: cfg}
}

// Recommend returns the [offset, offset+limit) page of recommendations for userID.
// A user without history gets an empty, non-personalized result.
func (s *Service) Recommend(ctx context.Context, userID string, limit, offset int) (Result, error) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return Result{}, fmt.Errorf("user id is required: %w", domain.ErrInvalidArgument)
	case limit < 1 || limit > s.cfg.MaxLimit:
		return Result{}, fmt.Errorf("limit %d outside 1..%d: %w", limit, s.cfg.MaxLimit, domain.ErrInvalidArgument)
	case offset < 0:
		return Result{}, fmt.Errorf("offset %d is negative: %w", offset, domain.ErrInvalidArgument)
	}

	res := Result{ID: uuid.NewString()}
	ctx, log := logger.With(ctx,
		zap.String("recommendation_id", res.ID),
		zap.String("user_id", userID),
	)
	start := time.Now()

	prof := s.profiles.Build(ctx, userID, s.cfg.SearchLimit, s.cfg.ViewLimit)
	if !prof.HasCentroid() {
		metrics.RecommendRequestsTotal.WithLabelValues("empty").Inc()
		log.Info("no usable history")
		return res, nil
	}
	res.Personalized = true

	pool := s.candidates.Generate(ctx, prof.Centroid, limit, offset)
	if pool.Len() == 0 {
		metrics.RecommendRequestsTotal.WithLabelValues("empty").Inc()
		log.Info("no candidates")
		return res, nil
	}

	unseen := s.seen.Apply(ctx, userID, pool.Items())
	page := s.reranker.Rerank(unseen, prof.Categories, limit, offset)
	res.Items = page.Items
	res.Backfilled = page.Backfilled

	metrics.RecommendRequestsTotal.WithLabelValues("ok").Inc()
	log.Info("recommendations ready",
		zap.Int("limit", limit),
		zap.Int("offset", offset),
		zap.Int("candidates", pool.Len()),
		zap.Int("unseen", len(unseen)),
		zap.Int("returned", len(res.Items)),
		zap.Int("backfilled", res.Backfilled),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
