// Package seen drops candidates the user has already viewed.
package seen

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// ViewReader lists a user's recent views.
type ViewReader interface {
	UserPaperViews(ctx context.Context, userID string, limit, days int) ([]interaction.PaperView, error)
}

// Defaults for the view lookup.
const (
	DefaultLimit = 100
	DefaultDays  = 365
)

// Filter removes recently viewed papers from a candidate pool.
type Filter struct {
	views ViewReader
	limit int
	days  int
}

// New creates a filter. Non-positive limit or days take the defaults.
func New(views ViewReader, limit, days int) *Filter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if days <= 0 {
		days = DefaultDays
	}
	return &Filter{views: views, limit: limit, days: days}
}

// Apply returns the candidates of pool the user has not viewed, in pool order.
// A failed lookup leaves the pool unfiltered.
func (f *Filter) Apply(ctx context.Context, userID string, pool []candidate.Candidate) []candidate.Candidate {
	if len(pool) == 0 {
		return pool
	}
	views, err := f.views.UserPaperViews(ctx, userID, f.limit, f.days)
	if err != nil {
		logger.FromContext(ctx).Warn("seen lookup failed, skipping filter",
			zap.String("user_id", userID), zap.Error(err))
		return pool
	}
	if len(views) == 0 {
		return pool
	}

	viewed := make(map[string]struct{}, len(views))
	for _, v := range views {
		viewed[v.PaperID] = struct{}{}
	}
	out := make([]candidate.Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := viewed[c.Paper.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	metrics.RecommendFilteredTotal.Add(float64(len(pool) - len(out)))
	return out
}
