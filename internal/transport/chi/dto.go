package chi

import (
	"time"

	domcand "github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	ingestuc "github.com/kailas-cloud/paperfeed/internal/usecase/ingest"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type paperJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type scoredPaperJSON struct {
	paperJSON
	Score          float64 `json:"score"`
	BaseScore      float64 `json:"base_score"`
	FreshnessBoost float64 `json:"freshness_boost"`
	CategoryBoost  float64 `json:"category_boost"`
	Source         string  `json:"source"`
}

type recommendationsResponse struct {
	RecommendationID string            `json:"recommendation_id"`
	Personalized     bool              `json:"personalized"`
	Backfilled       int               `json:"backfilled"`
	Items            []scoredPaperJSON `json:"items"`
}

type searchResponse struct {
	IDs    []string    `json:"ids"`
	Papers []paperJSON `json:"papers"`
}

type indexRequest struct {
	Papers []paperJSON `json:"papers"`
	IDs    []string    `json:"ids"`
	// Recent indexes the newest stored papers; -1 means all.
	Recent int `json:"recent"`
}

type indexResponse struct {
	Added         int `json:"added"`
	Skipped       int `json:"skipped"`
	BatchesOK     int `json:"batches_ok"`
	BatchesFailed int `json:"batches_failed"`
}

type searchEventRequest struct {
	Query string     `json:"query"`
	At    *time.Time `json:"at"`
}

type viewEventRequest struct {
	PaperID string     `json:"paper_id"`
	At      *time.Time `json:"at"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOr(t *time.Time, def time.Time) time.Time {
	if t == nil || t.IsZero() {
		return def
	}
	return *t
}

func paperToJSON(p *paper.Paper) paperJSON {
	return paperJSON{
		ID:          p.ID,
		Title:       p.Title,
		Abstract:    p.Abstract,
		Categories:  p.Categories,
		PublishedAt: timePtr(p.PublishedAt),
		UpdatedAt:   timePtr(p.UpdatedAt),
	}
}

func paperFromJSON(j *paperJSON) paper.Paper {
	return paper.Paper{
		ID:          j.ID,
		Title:       j.Title,
		Abstract:    j.Abstract,
		Categories:  j.Categories,
		PublishedAt: timeOr(j.PublishedAt, time.Time{}),
		UpdatedAt:   timeOr(j.UpdatedAt, time.Time{}),
	}
}

func scoredToJSON(s *domcand.Scored) scoredPaperJSON {
	return scoredPaperJSON{
		paperJSON:      paperToJSON(&s.Paper),
		Score:          s.FinalScore,
		BaseScore:      s.BaseScore,
		FreshnessBoost: s.FreshnessBoost,
		CategoryBoost:  s.CategoryBoost,
		Source:         string(s.Source),
	}
}

func reportToJSON(r ingestuc.Report) indexResponse {
	return indexResponse{
		Added:         r.Added,
		Skipped:       r.Skipped,
		BatchesOK:     r.Batches.Succeeded,
		BatchesFailed: r.Batches.Failed,
	}
}
