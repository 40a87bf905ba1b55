package recommend

import (
	"context"

	domcand "github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	domprofile "github.com/kailas-cloud/paperfeed/internal/domain/profile"
	"github.com/kailas-cloud/paperfeed/internal/usecase/rerank"
)

// ProfileBuilder builds a user's interest profile.
type ProfileBuilder interface {
	Build(ctx context.Context, userID string, searchLimit, viewLimit int) domprofile.Profile
}

// CandidateGenerator gathers candidates around a centroid.
type CandidateGenerator interface {
	Generate(ctx context.Context, centroid []float32, limit, offset int) *domcand.Pool
}

// SeenFilter drops already viewed candidates.
type SeenFilter interface {
	Apply(ctx context.Context, userID string, pool []domcand.Candidate) []domcand.Candidate
}

// Reranker orders candidates into a diversified page.
type Reranker interface {
	Rerank(pool []domcand.Candidate, weights domprofile.CategoryWeights, limit, offset int) rerank.Page
}
