// Package candidate holds the request-scoped scoring records of the recommend path.
package candidate

import "github.com/kailas-cloud/paperfeed/internal/domain/paper"

// Source tags where a candidate came from.
type Source string

// Candidate sources.
const (
	SourceSimilarity Source = "similarity"
	SourceRecency    Source = "recency"
)

// Candidate is a paper considered for ranking. Order is its insertion position
// in the pool and breaks score ties.
type Candidate struct {
	Paper     paper.Paper
	BaseScore float64
	Source    Source
	Order     int
}

// ID returns the paper id.
func (c *Candidate) ID() string { return c.Paper.ID }

// Scored is a candidate with its composite score broken down.
type Scored struct {
	Candidate
	FreshnessBoost float64
	CategoryBoost  float64
	FinalScore     float64
}

// Pool is a deduplicated, insertion-ordered candidate set.
type Pool struct {
	items []Candidate
	index map[string]int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Add inserts c unless its id is already present. The first source wins.
// Returns true when c was inserted.
func (p *Pool) Add(c Candidate) bool {
	if _, ok := p.index[c.ID()]; ok {
		return false
	}
	c.Order = len(p.items)
	p.index[c.ID()] = c.Order
	p.items = append(p.items, c)
	return true
}

// Len returns the number of candidates.
func (p *Pool) Len() int { return len(p.items) }

// Items returns the candidates in insertion order.
func (p *Pool) Items() []Candidate { return p.items }

// CountBySource returns how many candidates each source contributed.
func (p *Pool) CountBySource() map[Source]int {
	out := make(map[Source]int)
	for _, c := range p.items {
		out[c.Source]++
	}
	return out
}
