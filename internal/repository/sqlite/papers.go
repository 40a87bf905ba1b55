package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	dompaper "github.com/kailas-cloud/paperfeed/internal/domain/paper"
)

const paperColumns = `id, title, abstract, categories, published_at, updated_at`

// timeLayout is fixed-width UTC so that text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SavePaper creates or replaces a paper record.
func (s *Store) SavePaper(ctx context.Context, p dompaper.Paper) error {
	return s.SavePapers(ctx, []dompaper.Paper{p})
}

// SavePapers upserts papers in one transaction.
func (s *Store) SavePapers(ctx context.Context, papers []dompaper.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	for i := range papers {
		if strings.TrimSpace(papers[i].ID) == "" {
			return fmt.Errorf("paper %d has empty id: %w", i, domain.ErrInvalidArgument)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO papers (`+paperColumns+`) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title = excluded.title,
  abstract = excluded.abstract,
  categories = excluded.categories,
  published_at = excluded.published_at,
  updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with tx

	for i := range papers {
		p := &papers[i]
		_, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Abstract,
			encodeCategories(p.Categories), encodeTime(p.PublishedAt), encodeTime(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert paper %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetPaper returns a paper by id or domain.ErrNotFound.
func (s *Store) GetPaper(ctx context.Context, id string) (dompaper.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return dompaper.Paper{}, fmt.Errorf("paper %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return dompaper.Paper{}, fmt.Errorf("get paper %s: %w", id, err)
	}
	return p, nil
}

// GetPapers returns the papers that exist, in the order of ids. Missing ids are skipped.
func (s *Store) GetPapers(ctx context.Context, ids []string) ([]dompaper.Paper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get %d papers: %w", len(ids), err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	found, err := scanPapers(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]dompaper.Paper, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	out := make([]dompaper.Paper, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// RecentPapers returns papers newest first by publish date; undated papers sort last.
func (s *Store) RecentPapers(ctx context.Context, limit, offset int) ([]dompaper.Paper, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+paperColumns+` FROM papers
ORDER BY published_at IS NULL, published_at DESC, id DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("recent papers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	return scanPapers(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(sc scanner) (dompaper.Paper, error) {
	var (
		p                  dompaper.Paper
		categories         string
		published, updated sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.Title, &p.Abstract, &categories, &published, &updated); err != nil {
		return dompaper.Paper{}, err //nolint:wrapcheck // wrapped by callers
	}
	p.Categories = decodeCategories(categories)
	p.PublishedAt = decodeTime(published)
	p.UpdatedAt = decodeTime(updated)
	return p, nil
}

func scanPapers(rows *sql.Rows) ([]dompaper.Paper, error) {
	var out []dompaper.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func encodeCategories(cats []string) string {
	if len(cats) == 0 {
		return ""
	}
	return "," + strings.Join(cats, ",") + ","
}

func decodeCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func encodeTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func decodeTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, s.String); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s.String); err == nil {
		return t
	}
	return time.Time{}
}
