package expand

import "github.com/kailas-cloud/paperfeed/internal/domain"

// VectorSearcher finds nearest neighbours of a vector.
type VectorSearcher interface {
	Search(vector []float32, k int) ([]domain.VectorHit, error)
}
