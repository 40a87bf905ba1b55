package paper

import (
	"strings"
	"time"

	dompaper "github.com/kailas-cloud/paperfeed/internal/domain/paper"
)

const (
	fieldID         = "id"
	fieldTitle      = "title"
	fieldAbstract   = "abstract"
	fieldCategories = "categories"
	fieldPublished  = "published"
	fieldUpdated    = "updated"
)

// buildHashFields converts a paper into a flat map for HSET.
// Categories are space separated, matching arXiv's own listing format.
func buildHashFields(p *dompaper.Paper) map[string]string {
	m := map[string]string{
		fieldID:         p.ID,
		fieldTitle:      p.Title,
		fieldAbstract:   p.Abstract,
		fieldCategories: strings.Join(p.Categories, " "),
	}
	if !p.PublishedAt.IsZero() {
		m[fieldPublished] = p.PublishedAt.UTC().Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		m[fieldUpdated] = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return m
}

// parseHashFields converts a hash back into a paper. Unparseable dates are treated as missing.
func parseHashFields(id string, m map[string]string) dompaper.Paper {
	p := dompaper.Paper{
		ID:         id,
		Title:      m[fieldTitle],
		Abstract:   m[fieldAbstract],
		Categories: strings.Fields(m[fieldCategories]),
	}
	if t, err := time.Parse(time.RFC3339, m[fieldPublished]); err == nil {
		p.PublishedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m[fieldUpdated]); err == nil {
		p.UpdatedAt = t
	}
	return p
}

// publishedScore orders papers in the published index.
func publishedScore(p *dompaper.Paper) float64 {
	if p.PublishedAt.IsZero() {
		return 0
	}
	return float64(p.PublishedAt.Unix())
}

// searchRecord is the JSON form of a stored search.
type searchRecord struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func fromUnixSeconds(s float64) time.Time {
	return time.UnixMilli(int64(s * 1000)).UTC()
}
