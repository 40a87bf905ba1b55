// Package paper holds the paper record read from the storage collaborator.
package paper

import (
	"strings"
	"time"
	"unicode/utf8"
)

// UnknownCategory is the primary category of a paper without categories.
const UnknownCategory = "unknown"

// Paper is a paper record. PublishedAt is zero when the source has no date.
type Paper struct {
	ID          string
	Title       string
	Abstract    string
	Categories  []string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// PrimaryCategory returns the first listed category, or UnknownCategory.
func (p *Paper) PrimaryCategory() string {
	for _, c := range p.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return UnknownCategory
}

// HasPublishDate reports whether the record carries a publish date.
func (p *Paper) HasPublishDate() bool { return !p.PublishedAt.IsZero() }

// AgeDays returns the fractional number of days between publication and now.
// Future dates count as age 0. ok is false when the paper has no publish date.
func (p *Paper) AgeDays(now time.Time) (days float64, ok bool) {
	if !p.HasPublishDate() {
		return 0, false
	}
	d := now.Sub(p.PublishedAt).Hours() / 24
	if d < 0 {
		d = 0
	}
	return d, true
}

// EmbeddingText is the text indexed for a paper: title, blank line, abstract.
func (p *Paper) EmbeddingText() string {
	title := strings.TrimSpace(p.Title)
	abs := strings.TrimSpace(p.Abstract)
	switch {
	case abs == "":
		return title
	case title == "":
		return abs
	default:
		return title + "\n\n" + abs
	}
}

// Truncate returns the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
