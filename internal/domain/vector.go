package domain

// VectorHit is one nearest-neighbour result.
type VectorHit struct {
	ID         string
	Similarity float64
	// Distance is 1 - Similarity, in [0, 2] for unit vectors.
	Distance float64
}
