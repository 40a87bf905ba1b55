// Package expand answers free-text searches by paraphrasing the query and
// merging the nearest neighbours of every paraphrase.
package expand

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// Config tunes expansion and fan-out.
type Config struct {
	CompletionTimeout time.Duration
	FanOutTimeout     time.Duration
	CacheSize         int
	Temperature       float32
	MaxTokens         int
}

// DefaultConfig returns 15s completion and 10s fan-out timeouts and a 1024-entry cache.
func DefaultConfig() Config {
	return Config{
		CompletionTimeout: 15 * time.Second,
		FanOutTimeout:     10 * time.Second,
		CacheSize:         1024,
		Temperature:       0.7,
		MaxTokens:         300,
	}
}

// Service expands queries and fans searches out over the index.
type Service struct {
	completer domain.Completer
	embedder  domain.Embedder
	index     VectorSearcher
	cache     *lru.Cache[string, []string]
	cfg       Config
}

// New creates a query expander. Zero config fields take defaults.
func New(completer domain.Completer, embedder domain.Embedder, index VectorSearcher, cfg Config) (*Service, error) {
	def := DefaultConfig()
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = def.CompletionTimeout
	}
	if cfg.FanOutTimeout <= 0 {
		cfg.FanOutTimeout = def.FanOutTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	cache, err := lru.New[string, []string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("expansion cache: %w", err)
	}
	return &Service{completer: completer, embedder: embedder, index: index, cache: cache, cfg: cfg}, nil
}

// Expand returns the paraphrases of query. Results are cached by the trimmed query.
func (s *Service) Expand(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidArgument)
	}
	if cached, ok := s.cache.Get(query); ok {
		metrics.ExpansionTotal.WithLabelValues("cached").Inc()
		return cached, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()

	raw, err := s.completer.Complete(cctx, domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: query},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSONObject:  true,
	})
	if err != nil {
		metrics.ExpansionTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("expand query: %w", err)
	}

	variants, err := parseExpansion(raw)
	if err != nil {
		metrics.ExpansionTotal.WithLabelValues("malformed").Inc()
		logger.FromContext(ctx).Warn("malformed query expansion",
			zap.String("query", query), zap.Int("response_len", len(raw)), zap.Error(err))
		return nil, err
	}

	metrics.ExpansionTotal.WithLabelValues("ok").Inc()
	s.cache.Add(query, variants)
	return variants, nil
}

// Search expands query and returns the sorted union of the k nearest ids of
// every paraphrase. Failing branches are skipped; if all fail the call fails
// with ErrSearchUnavailable.
func (s *Service) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k %d: %w", k, domain.ErrInvalidArgument)
	}
	variants, err := s.Expand(ctx, query)
	if err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FanOutTimeout)
	defer cancel()

	log := logger.FromContext(ctx)
	results := make([][]string, len(variants))
	errs := make([]error, len(variants))

	g, gctx := errgroup.WithContext(fctx)
	for i, v := range variants {
		g.Go(func() error {
			ids, err := s.branch(gctx, v, k)
			if err != nil {
				metrics.SearchBranchesTotal.WithLabelValues("error").Inc()
				log.Warn("search branch failed", zap.Int("branch", i), zap.Error(err))
				errs[i] = err
				return nil
			}
			metrics.SearchBranchesTotal.WithLabelValues("ok").Inc()
			results[i] = ids
			return nil
		})
	}
	_ = g.Wait() // branches report through errs

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	merged := make(map[string]struct{})
	succeeded := 0
	for i := range variants {
		if errs[i] != nil {
			continue
		}
		succeeded++
		for _, id := range results[i] {
			merged[id] = struct{}{}
		}
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("%d branches: %w: %w", len(variants), domain.ErrSearchUnavailable, errors.Join(errs...))
	}

	out := make([]string, 0, len(merged))
	for id := range merged {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) branch(ctx context.Context, text string, k int) ([]string, error) {
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	hits, err := s.index.Search(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}
