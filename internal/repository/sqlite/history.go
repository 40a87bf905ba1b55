package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
)

// RecordSearch appends a search to the user's history.
func (s *Store) RecordSearch(ctx context.Context, userID string, q interaction.SearchQuery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (user_id, query, at) VALUES (?, ?, ?)`,
		userID, q.Text, encodeTime(q.At))
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// SearchHistory returns up to limit searches, newest first.
func (s *Store) SearchHistory(ctx context.Context, userID string, limit int) ([]interaction.SearchQuery, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT query, at FROM searches
WHERE user_id = ? AND trim(query) != ''
ORDER BY at DESC, id DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []interaction.SearchQuery
	for rows.Next() {
		var (
			q  interaction.SearchQuery
			at sql.NullString
		)
		if err := rows.Scan(&q.Text, &at); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		q.At = decodeTime(at)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate searches: %w", err)
	}
	return out, nil
}

// RecordView stores a paper view, bumping its count and last-view time.
func (s *Store) RecordView(ctx context.Context, userID, paperID string, at time.Time) error {
	if strings.TrimSpace(paperID) == "" {
		return fmt.Errorf("empty paper id: %w", domain.ErrInvalidArgument)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO views (user_id, paper_id, last_viewed_at, view_count) VALUES (?, ?, ?, 1)
ON CONFLICT(user_id, paper_id) DO UPDATE SET
  view_count = view_count + 1,
  last_viewed_at = max(last_viewed_at, excluded.last_viewed_at)`,
		userID, paperID, encodeTime(at))
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// UserPaperViews returns up to limit most recent views. days > 0 drops views older than that many days.
func (s *Store) UserPaperViews(ctx context.Context, userID string, limit, days int) ([]interaction.PaperView, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT paper_id, last_viewed_at, view_count FROM views WHERE user_id = ?`
	args := []any{userID}
	if days > 0 {
		query += ` AND last_viewed_at >= ?`
		args = append(args, encodeTime(s.now().AddDate(0, 0, -days)))
	}
	query += ` ORDER BY last_viewed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("user views: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []interaction.PaperView
	for rows.Next() {
		var (
			v  interaction.PaperView
			at sql.NullString
		)
		if err := rows.Scan(&v.PaperID, &at, &v.Count); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		v.At = decodeTime(at)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return out, nil
}

// ViewedPapers returns up to limit most recent views joined with their papers.
// Views of papers missing from storage are dropped by the join.
func (s *Store) ViewedPapers(ctx context.Context, userID string, limit int) ([]interaction.ViewedPaper, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT v.paper_id, v.last_viewed_at, v.view_count,
       p.id, p.title, p.abstract, p.categories, p.published_at, p.updated_at
FROM views v JOIN papers p ON p.id = v.paper_id
WHERE v.user_id = ?
ORDER BY v.last_viewed_at DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("viewed papers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []interaction.ViewedPaper
	for rows.Next() {
		var (
			vp                     interaction.ViewedPaper
			at, published, updated sql.NullString
			categories             string
		)
		p := &vp.Paper
		err := rows.Scan(&vp.View.PaperID, &at, &vp.View.Count,
			&p.ID, &p.Title, &p.Abstract, &categories, &published, &updated)
		if err != nil {
			return nil, fmt.Errorf("scan viewed paper: %w", err)
		}
		vp.View.At = decodeTime(at)
		p.Categories = decodeCategories(categories)
		p.PublishedAt = decodeTime(published)
		p.UpdatedAt = decodeTime(updated)
		out = append(out, vp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewed papers: %w", err)
	}
	return out, nil
}
