// Package profile builds a user's interest profile from time-decayed history.
package profile

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	domprofile "github.com/kailas-cloud/paperfeed/internal/domain/profile"
	"github.com/kailas-cloud/paperfeed/internal/logger"
)

// Config tunes history weighting.
type Config struct {
	HalfLifeDays  float64
	QueryWeight   float64
	ViewWeight    float64
	AbstractChars int
	MinWeight     float64
}

// DefaultConfig returns the standard weighting: 14-day half-life, views at
// twice the weight of searches, abstracts at half the weight of titles.
func DefaultConfig() Config {
	return Config{
		HalfLifeDays:  14,
		QueryWeight:   1.0,
		ViewWeight:    2.0,
		AbstractChars: 500,
		MinWeight:     0.01,
	}
}

// Service builds profiles.
type Service struct {
	history  HistoryReader
	embedder TextEmbedder
	cfg      Config
	now      func() time.Time
}

// New creates a profile builder. Zero config fields take defaults.
func New(history HistoryReader, embedder TextEmbedder, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = def.HalfLifeDays
	}
	if cfg.QueryWeight <= 0 {
		cfg.QueryWeight = def.QueryWeight
	}
	if cfg.ViewWeight <= 0 {
		cfg.ViewWeight = def.ViewWeight
	}
	if cfg.AbstractChars <= 0 {
		cfg.AbstractChars = def.AbstractChars
	}
	if cfg.MinWeight <= 0 {
		cfg.MinWeight = def.MinWeight
	}
	return &Service{history: history, embedder: embedder, cfg: cfg, now: time.Now}
}

// DecayedWeight returns base * 0.5^(ageDays/halfLifeDays). Negative ages count as 0.
func DecayedWeight(base, ageDays, halfLifeDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return base * math.Pow(0.5, ageDays/halfLifeDays)
}

type weightedText struct {
	text   string
	weight float64
}

// Build returns the user's profile. Missing history and storage failures
// yield a profile without centroid; Build never fails.
func (s *Service) Build(ctx context.Context, userID string, searchLimit, viewLimit int) domprofile.Profile {
	log := logger.FromContext(ctx)
	now := s.now()

	var searches []interaction.SearchQuery
	if searchLimit > 0 {
		var err error
		searches, err = s.history.SearchHistory(ctx, userID, searchLimit)
		if err != nil {
			log.Warn("search history unavailable, treating as empty", zap.Error(err))
			searches = nil
		}
	}
	var views []interaction.ViewedPaper
	if viewLimit > 0 {
		var err error
		views, err = s.history.ViewedPapers(ctx, userID, viewLimit)
		if err != nil {
			log.Warn("view history unavailable, treating as empty", zap.Error(err))
			views = nil
		}
	}

	texts, categories := s.collect(searches, views, now)
	prof := domprofile.Profile{Categories: categories.Normalized()}
	if len(texts) == 0 {
		return prof
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = t.text
	}
	vectors, stats := s.embedder.EmbedAll(ctx, inputs)

	prof.Centroid, prof.Texts = centroid(texts, vectors)
	log.Debug("profile built",
		zap.Int("searches", len(searches)),
		zap.Int("views", len(views)),
		zap.Int("texts", len(texts)),
		zap.Int("embedded", prof.Texts),
		zap.Int("failed_batches", stats.Failed),
		zap.Int("categories", len(prof.Categories)))
	return prof
}

// collect turns events into weighted texts and raw category weights.
func (s *Service) collect(
	searches []interaction.SearchQuery, views []interaction.ViewedPaper, now time.Time,
) ([]weightedText, domprofile.CategoryWeights) {
	var texts []weightedText
	categories := domprofile.CategoryWeights{}

	for _, q := range searches {
		w := DecayedWeight(s.cfg.QueryWeight, interaction.AgeDays(q.At, now), s.cfg.HalfLifeDays)
		if w < s.cfg.MinWeight {
			continue
		}
		if text := strings.TrimSpace(q.Text); text != "" {
			texts = append(texts, weightedText{text: text, weight: w})
		}
	}

	for _, v := range views {
		w := DecayedWeight(s.cfg.ViewWeight, interaction.AgeDays(v.View.At, now), s.cfg.HalfLifeDays)
		if w < s.cfg.MinWeight {
			continue
		}
		if title := strings.TrimSpace(v.Paper.Title); title != "" {
			texts = append(texts, weightedText{text: title, weight: w})
		}
		abs := strings.TrimSpace(paper.Truncate(strings.TrimSpace(v.Paper.Abstract), s.cfg.AbstractChars))
		if abs != "" {
			texts = append(texts, weightedText{text: abs, weight: w / 2})
		}
		for _, c := range v.Paper.Categories {
			if c = strings.TrimSpace(c); c != "" {
				categories[c] += w
			}
		}
	}
	return texts, categories
}

// centroid is the weight-averaged vector over texts that were embedded.
func centroid(texts []weightedText, vectors [][]float32) ([]float32, int) {
	var (
		sum   []float64
		total float64
		used  int
	)
	for i, v := range vectors {
		if v == nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		w := texts[i].weight
		for j, x := range v {
			sum[j] += w * float64(x)
		}
		total += w
		used++
	}
	if total == 0 {
		return nil, 0
	}
	out := make([]float32, len(sum))
	for j := range sum {
		out[j] = float32(sum[j] / total)
	}
	return out, used
}
