package candidate

import (
	"context"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
)

// VectorSearcher finds nearest neighbours of a vector.
type VectorSearcher interface {
	Search(vector []float32, k int) ([]domain.VectorHit, error)
}

// PaperReader loads paper records.
type PaperReader interface {
	GetPapers(ctx context.Context, ids []string) ([]paper.Paper, error)
	RecentPapers(ctx context.Context, limit, offset int) ([]paper.Paper, error)
}
