// Package rerank scores candidates and lays them out in category-diverse pages.
package rerank

import (
	"sort"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	domprofile "github.com/kailas-cloud/paperfeed/internal/domain/profile"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// Config tunes the boosts.
type Config struct {
	FreshnessWindowDays float64
	FreshnessWeight     float64
	CategoryWeight      float64
}

// DefaultConfig returns a 90-day freshness window at weight 0.3 and a category weight of 0.5.
func DefaultConfig() Config {
	return Config{FreshnessWindowDays: 90, FreshnessWeight: 0.3, CategoryWeight: 0.5}
}

// Page is one slice of the diversified ranking.
type Page struct {
	Items []candidate.Scored
	// Backfilled counts items in Items that were placed past the category cap.
	Backfilled int
}

// Reranker scores and pages candidates.
type Reranker struct {
	cfg Config
	now func() time.Time
}

// New creates a reranker. Zero config fields take defaults.
func New(cfg Config) *Reranker {
	def := DefaultConfig()
	if cfg.FreshnessWindowDays <= 0 {
		cfg.FreshnessWindowDays = def.FreshnessWindowDays
	}
	if cfg.FreshnessWeight <= 0 {
		cfg.FreshnessWeight = def.FreshnessWeight
	}
	if cfg.CategoryWeight <= 0 {
		cfg.CategoryWeight = def.CategoryWeight
	}
	return &Reranker{cfg: cfg, now: time.Now}
}

// FreshnessBoost returns max(0, 1 - age/window) * weight, or 0 without a publish date.
func (r *Reranker) FreshnessBoost(c *candidate.Candidate, now time.Time) float64 {
	age, ok := c.Paper.AgeDays(now)
	if !ok {
		return 0
	}
	f := 1 - age/r.cfg.FreshnessWindowDays
	if f < 0 {
		return 0
	}
	return f * r.cfg.FreshnessWeight
}

// CategoryBoost returns the summed profile weight of the candidate's categories times the category weight.
func (r *Reranker) CategoryBoost(c *candidate.Candidate, weights domprofile.CategoryWeights) float64 {
	var s float64
	for _, cat := range c.Paper.Categories {
		s += weights[cat]
	}
	return s * r.cfg.CategoryWeight
}

// Score computes final scores and returns candidates ordered by score
// descending, ties kept in pool order.
func (r *Reranker) Score(pool []candidate.Candidate, weights domprofile.CategoryWeights) []candidate.Scored {
	now := r.now()
	out := make([]candidate.Scored, len(pool))
	for i := range pool {
		c := &pool[i]
		fresh := r.FreshnessBoost(c, now)
		cat := r.CategoryBoost(c, weights)
		out[i] = candidate.Scored{
			Candidate:      *c,
			FreshnessBoost: fresh,
			CategoryBoost:  cat,
			FinalScore:     c.BaseScore + fresh + cat,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// CategoryCap returns the per-page limit on items sharing a primary category.
func CategoryCap(limit int) int {
	return max(1, limit/3)
}

// CategoryGap is the minimum distance between two items of one primary
// category in the diversified order. Any run of n positions then holds at
// most ceil(n/5) <= CategoryCap(n) items of a category, so every page meets
// its cap whatever the page size.
const CategoryGap = 5

// Rerank scores pool and returns the [offset, offset+limit) slice of the
// diversified ordering. The ordering does not depend on limit, so
// consecutive pages never overlap and together equal one larger page.
// An item is placed closer than CategoryGap to its category only when no
// remaining candidate fits; Backfilled counts the page's items beyond its
// category cap.
func (r *Reranker) Rerank(pool []candidate.Candidate, weights domprofile.CategoryWeights, limit, offset int) Page {
	if limit <= 0 || offset < 0 || len(pool) == 0 {
		return Page{}
	}
	ranked := r.Score(pool, weights)
	order := diversify(ranked, limit+offset)

	if offset >= len(order) {
		return Page{}
	}
	end := min(offset+limit, len(order))
	page := Page{Items: make([]candidate.Scored, 0, end-offset)}
	perCat := make(map[string]int)
	capN := CategoryCap(limit)
	for _, i := range order[offset:end] {
		page.Items = append(page.Items, ranked[i])
		cat := ranked[i].Paper.PrimaryCategory()
		perCat[cat]++
		if perCat[cat] > capN {
			page.Backfilled++
		}
	}
	metrics.RecommendBackfilledTotal.Add(float64(page.Backfilled))
	return page
}

// diversify returns indexes into ranked for the first n positions. Each
// position takes the best-ranked candidate whose category last appeared at
// least CategoryGap positions back; when none qualifies it backfills with the
// candidate whose category appeared longest ago, ties going to rank.
func diversify(ranked []candidate.Scored, n int) []int {
	n = min(n, len(ranked))
	used := make([]bool, len(ranked))
	last := make(map[string]int)
	order := make([]int, 0, n)

	for pos := 0; pos < n; pos++ {
		pick, fallback, fallbackGap := -1, -1, -1
		for i := range ranked {
			if used[i] {
				continue
			}
			gap := CategoryGap
			if at, ok := last[ranked[i].Paper.PrimaryCategory()]; ok {
				gap = pos - at
			}
			if gap >= CategoryGap {
				pick = i
				break
			}
			if gap > fallbackGap {
				fallback, fallbackGap = i, gap
			}
		}
		if pick < 0 {
			pick = fallback
		}
		used[pick] = true
		last[ranked[pick].Paper.PrimaryCategory()] = pos
		order = append(order, pick)
	}
	return order
}
