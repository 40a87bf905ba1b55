// Package interaction holds the time-stamped user events a profile is built from.
package interaction

import (
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
)

// SearchQuery is a free-text search the user issued.
type SearchQuery struct {
	Text string
	At   time.Time
}

// PaperView records that a user opened a paper. Count is the number of views
// folded into the record; At is the most recent one.
type PaperView struct {
	PaperID string
	At      time.Time
	Count   int
}

// ViewedPaper is a view joined with the paper it refers to.
type ViewedPaper struct {
	View  PaperView
	Paper paper.Paper
}

// AgeDays returns the fractional days elapsed since at, clamped at 0.
func AgeDays(at, now time.Time) float64 {
	d := now.Sub(at).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
