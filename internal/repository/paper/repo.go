// Package paper stores papers and user interaction history in Redis.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/db"
	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	dompaper "github.com/kailas-cloud/paperfeed/internal/domain/paper"
)

// store is the consumer interface for papers and history (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	ZAdd(ctx context.Context, key string, members ...db.ScoredMember) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]db.ScoredMember, error)
	ZTrimOldest(ctx context.Context, key string, keep int64) error
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

// Limits caps the per-user history kept in Redis.
type Limits struct {
	MaxSearches int
	MaxViews    int
}

// Repo implements the paper and history contracts of the usecase layer.
type Repo struct {
	store  store
	limits Limits
	now    func() time.Time
}

// New creates a Redis-backed paper repository.
func New(s store, limits Limits) *Repo {
	if limits.MaxSearches <= 0 {
		limits.MaxSearches = 500
	}
	if limits.MaxViews <= 0 {
		limits.MaxViews = 500
	}
	return &Repo{store: s, limits: limits, now: time.Now}
}

// SavePaper creates or replaces a paper record.
func (r *Repo) SavePaper(ctx context.Context, p dompaper.Paper) error {
	return r.SavePapers(ctx, []dompaper.Paper{p})
}

// SavePapers stores papers in one pipelined round-trip and updates the published index.
func (r *Repo) SavePapers(ctx context.Context, papers []dompaper.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(papers))
	members := make([]db.ScoredMember, len(papers))
	for i := range papers {
		p := &papers[i]
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("paper %d has empty id: %w", i, domain.ErrInvalidArgument)
		}
		items[i] = db.HashSetItem{Key: paperKey(p.ID), Fields: buildHashFields(p)}
		members[i] = db.ScoredMember{Member: p.ID, Score: publishedScore(p)}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save %d papers: %w", len(papers), err)
	}
	if err := r.store.ZAdd(ctx, publishedKey, members...); err != nil {
		return fmt.Errorf("index %d papers: %w", len(papers), err)
	}
	return nil
}

// GetPaper returns a paper by id or domain.ErrNotFound.
func (r *Repo) GetPaper(ctx context.Context, id string) (dompaper.Paper, error) {
	m, err := r.store.HGetAll(ctx, paperKey(id))
	if err != nil {
		return dompaper.Paper{}, fmt.Errorf("get paper %s: %w", id, err)
	}
	if len(m) == 0 {
		return dompaper.Paper{}, fmt.Errorf("paper %s: %w", id, domain.ErrNotFound)
	}
	return parseHashFields(id, m), nil
}

// GetPapers returns the papers that exist, in the order of ids. Missing ids are skipped.
func (r *Repo) GetPapers(ctx context.Context, ids []string) ([]dompaper.Paper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = paperKey(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get %d papers: %w", len(ids), err)
	}

	out := make([]dompaper.Paper, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out = append(out, parseHashFields(ids[i], m))
	}
	return out, nil
}

// RecentPapers returns papers newest first by publish date.
func (r *Repo) RecentPapers(ctx context.Context, limit, offset int) ([]dompaper.Paper, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	members, err := r.store.ZRevRange(ctx, publishedKey, int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, fmt.Errorf("recent papers: %w", err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member
	}
	return r.GetPapers(ctx, ids)
}

// RecordSearch appends a search to the user's history.
func (r *Repo) RecordSearch(ctx context.Context, userID string, q interaction.SearchQuery) error {
	data, err := json.Marshal(searchRecord{Text: q.Text, At: q.At.UTC()})
	if err != nil {
		return fmt.Errorf("marshal search: %w", err)
	}
	key := searchesKey(userID)
	if err := r.store.LPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	if err := r.store.LTrim(ctx, key, 0, int64(r.limits.MaxSearches-1)); err != nil {
		return fmt.Errorf("trim searches: %w", err)
	}
	return nil
}

// SearchHistory returns up to limit searches, newest first. Unreadable entries are skipped.
func (r *Repo) SearchHistory(ctx context.Context, userID string, limit int) ([]interaction.SearchQuery, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := r.store.LRange(ctx, searchesKey(userID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	out := make([]interaction.SearchQuery, 0, len(raw))
	for _, s := range raw {
		var rec searchRecord
		if json.Unmarshal([]byte(s), &rec) != nil || strings.TrimSpace(rec.Text) == "" {
			continue
		}
		out = append(out, interaction.SearchQuery{Text: rec.Text, At: rec.At})
	}
	return out, nil
}

// RecordView stores a paper view, bumping its count and last-view time.
func (r *Repo) RecordView(ctx context.Context, userID, paperID string, at time.Time) error {
	if strings.TrimSpace(paperID) == "" {
		return fmt.Errorf("empty paper id: %w", domain.ErrInvalidArgument)
	}
	key := viewsKey(userID)
	if err := r.store.ZAdd(ctx, key, db.ScoredMember{Member: paperID, Score: unixSeconds(at)}); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	if _, err := r.store.HIncrBy(ctx, viewCountKey(userID), paperID, 1); err != nil {
		return fmt.Errorf("count view: %w", err)
	}
	if err := r.store.ZTrimOldest(ctx, key, int64(r.limits.MaxViews)); err != nil {
		return fmt.Errorf("trim views: %w", err)
	}
	return nil
}

// UserPaperViews returns up to limit most recent views. days > 0 drops views older than that many days.
func (r *Repo) UserPaperViews(ctx context.Context, userID string, limit, days int) ([]interaction.PaperView, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := r.store.ZRevRange(ctx, viewsKey(userID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("user views: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	counts, err := r.store.HGetAll(ctx, viewCountKey(userID))
	if err != nil {
		return nil, fmt.Errorf("view counts: %w", err)
	}

	var cutoff time.Time
	if days > 0 {
		cutoff = r.now().AddDate(0, 0, -days)
	}

	out := make([]interaction.PaperView, 0, len(members))
	for _, m := range members {
		at := fromUnixSeconds(m.Score)
		if !cutoff.IsZero() && at.Before(cutoff) {
			break // newest first
		}
		count, _ := strconv.Atoi(counts[m.Member])
		if count < 1 {
			count = 1
		}
		out = append(out, interaction.PaperView{PaperID: m.Member, At: at, Count: count})
	}
	return out, nil
}

// ViewedPapers returns up to limit most recent views joined with their papers.
// Views of papers missing from storage are dropped.
func (r *Repo) ViewedPapers(ctx context.Context, userID string, limit int) ([]interaction.ViewedPaper, error) {
	views, err := r.UserPaperViews(ctx, userID, limit, 0)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, nil
	}
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.PaperID
	}
	papers, err := r.GetPapers(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]dompaper.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	out := make([]interaction.ViewedPaper, 0, len(views))
	for _, v := range views {
		p, ok := byID[v.PaperID]
		if !ok {
			continue
		}
		out = append(out, interaction.ViewedPaper{View: v, Paper: p})
	}
	return out, nil
}
