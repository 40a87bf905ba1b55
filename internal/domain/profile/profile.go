// Package profile holds the interest representation built from a user's history.
package profile

import "math"

// CategoryWeights maps a category to its share of the user's viewing interest.
type CategoryWeights map[string]float64

// Sum returns the total weight.
func (w CategoryWeights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Normalized returns a copy scaled to sum 1.0. A zero or negative total yields an empty map.
func (w CategoryWeights) Normalized() CategoryWeights {
	total := w.Sum()
	out := make(CategoryWeights, len(w))
	if total <= 0 || math.IsNaN(total) {
		return out
	}
	for k, v := range w {
		out[k] = v / total
	}
	return out
}

// Profile is a user's interest representation. Centroid is nil when there was
// no usable history.
type Profile struct {
	Centroid   []float32
	Categories CategoryWeights
	// Texts is the number of weighted texts that contributed to the centroid.
	Texts int
}

// HasCentroid reports whether personalization is possible.
func (p Profile) HasCentroid() bool { return len(p.Centroid) > 0 }

// Empty returns a profile without centroid and with an empty category map.
func Empty() Profile {
	return Profile{Categories: CategoryWeights{}}
}
