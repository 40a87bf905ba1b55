// Package candidate gathers ranking candidates from the similarity and recency sources.
package candidate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domcand "github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// Config tunes candidate generation.
type Config struct {
	// PoolMultiplier widens the similarity search to leave room for filtering.
	PoolMultiplier int
	// RecencyScore is the base score of recency candidates.
	RecencyScore float64
}

// DefaultConfig returns pool multiplier 4 and recency score 0.1.
func DefaultConfig() Config {
	return Config{PoolMultiplier: 4, RecencyScore: 0.1}
}

// Service merges the similarity and recency sources.
type Service struct {
	index  VectorSearcher
	papers PaperReader
	cfg    Config
}

// New creates a candidate generator.
func New(index VectorSearcher, papers PaperReader, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.PoolMultiplier <= 0 {
		cfg.PoolMultiplier = def.PoolMultiplier
	}
	if cfg.RecencyScore <= 0 {
		cfg.RecencyScore = def.RecencyScore
	}
	return &Service{index: index, papers: papers, cfg: cfg}
}

// SimilarityScore maps an index distance to a score in (0, 1].
func SimilarityScore(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// Generate returns the merged pool: similarity candidates first, then recency
// candidates not already present. A failing source contributes nothing.
func (s *Service) Generate(ctx context.Context, centroid []float32, limit, offset int) *domcand.Pool {
	log := logger.FromContext(ctx)
	want := limit + offset

	var (
		similar []domcand.Candidate
		recent  []domcand.Candidate
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		similar, err = s.similarity(ctx, centroid, want*s.cfg.PoolMultiplier)
		if err != nil {
			log.Warn("similarity source failed", zap.Error(err))
			similar = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = s.recency(ctx, want)
		if err != nil {
			log.Warn("recency source failed", zap.Error(err))
			recent = nil
		}
		return nil
	})
	_ = g.Wait() // sources never return errors

	pool := domcand.NewPool()
	for _, c := range similar {
		pool.Add(c)
	}
	for _, c := range recent {
		pool.Add(c)
	}

	counts := pool.CountBySource()
	metrics.RecommendCandidatesTotal.WithLabelValues(string(domcand.SourceSimilarity)).
		Add(float64(counts[domcand.SourceSimilarity]))
	metrics.RecommendCandidatesTotal.WithLabelValues(string(domcand.SourceRecency)).
		Add(float64(counts[domcand.SourceRecency]))
	log.Debug("candidates generated",
		zap.Int("similarity", counts[domcand.SourceSimilarity]),
		zap.Int("recency", counts[domcand.SourceRecency]))
	return pool
}

func (s *Service) similarity(ctx context.Context, centroid []float32, k int) ([]domcand.Candidate, error) {
	if len(centroid) == 0 || k <= 0 {
		return nil, nil
	}
	hits, err := s.index.Search(centroid, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	papers, err := s.papers.GetPapers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load %d papers: %w", len(ids), err)
	}
	byID := make(map[string]paper.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	out := make([]domcand.Candidate, 0, len(hits))
	for _, h := range hits {
		p, ok := byID[h.ID]
		if !ok {
			continue // indexed but missing from storage
		}
		out = append(out, domcand.Candidate{
			Paper:     p,
			BaseScore: SimilarityScore(h.Distance),
			Source:    domcand.SourceSimilarity,
		})
	}
	return out, nil
}

func (s *Service) recency(ctx context.Context, n int) ([]domcand.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	papers, err := s.papers.RecentPapers(ctx, n, 0)
	if err != nil {
		return nil, fmt.Errorf("recent papers: %w", err)
	}
	out := make([]domcand.Candidate, len(papers))
	for i, p := range papers {
		out[i] = domcand.Candidate{Paper: p, BaseScore: s.cfg.RecencyScore, Source: domcand.SourceRecency}
	}
	return out, nil
}
