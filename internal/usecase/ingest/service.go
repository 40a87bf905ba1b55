// Package ingest embeds papers and appends them to the vector index.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/paperfeed/internal/domain/batch"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	"github.com/kailas-cloud/paperfeed/internal/logger"
)

// DefaultPageSize is the number of papers read per storage page by IndexRecent.
const DefaultPageSize = 200

// Report summarizes an indexing run.
type Report struct {
	Added   int
	Skipped int
	Batches dombatch.Stats
}

func (r *Report) merge(o Report) {
	r.Added += o.Added
	r.Skipped += o.Skipped
	r.Batches.Succeeded += o.Batches.Succeeded
	r.Batches.Failed += o.Batches.Failed
}

// Service indexes papers.
type Service struct {
	store    PaperStore
	index    VectorIndex
	runner   BatchRunner
	pageSize int
}

// New creates the ingest service.
func New(store PaperStore, index VectorIndex, runner BatchRunner, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{store: store, index: index, runner: runner, pageSize: pageSize}
}

// Ingest stores papers and indexes them.
func (s *Service) Ingest(ctx context.Context, papers []paper.Paper) (Report, error) {
	if err := s.store.SavePapers(ctx, papers); err != nil {
		return Report{}, fmt.Errorf("save %d papers: %w", len(papers), err)
	}
	return s.IndexPapers(ctx, papers), nil
}

// IndexPapers embeds papers not yet in the index and appends them batch by
// batch. A failed batch is counted and the remaining batches still run.
func (s *Service) IndexPapers(ctx context.Context, papers []paper.Paper) Report {
	var rep Report
	seen := make(map[string]struct{}, len(papers))
	ids := make([]string, 0, len(papers))
	texts := make([]string, 0, len(papers))

	for i := range papers {
		p := &papers[i]
		id := strings.TrimSpace(p.ID)
		if _, dup := seen[id]; dup || id == "" || s.index.Has(id) {
			rep.Skipped++
			continue
		}
		text := p.EmbeddingText()
		if text == "" {
			rep.Skipped++
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return rep
	}

	// Has above only saves embedding calls; AddNew settles races with
	// concurrent ingests for the same ids.
	var added, raced atomic.Int64
	results := s.runner.Run(ctx, texts, func(_ context.Context, start int, vectors [][]float32) error {
		n, err := s.index.AddNew(ids[start:start+len(vectors)], vectors)
		added.Add(int64(n))
		if err != nil {
			return fmt.Errorf("append to index: %w", err)
		}
		raced.Add(int64(len(vectors) - n))
		return nil
	})
	rep.Added = int(added.Load())
	rep.Skipped += int(raced.Load())
	rep.Batches = dombatch.Summarize(results)

	logger.FromContext(ctx).Info("papers indexed",
		zap.Int("added", rep.Added),
		zap.Int("skipped", rep.Skipped),
		zap.Int("batches_ok", rep.Batches.Succeeded),
		zap.Int("batches_failed", rep.Batches.Failed))
	return rep
}

// IndexByIDs loads papers by id and indexes them. Unknown ids are skipped.
func (s *Service) IndexByIDs(ctx context.Context, ids []string) (Report, error) {
	papers, err := s.store.GetPapers(ctx, ids)
	if err != nil {
		return Report{}, fmt.Errorf("load %d papers: %w", len(ids), err)
	}
	rep := s.IndexPapers(ctx, papers)
	rep.Skipped += len(ids) - len(papers)
	return rep, nil
}

// IndexRecent pages through the newest papers in storage, up to limit papers
// (all when limit <= 0), and indexes them.
func (s *Service) IndexRecent(ctx context.Context, limit int) (Report, error) {
	var total Report
	for offset := 0; limit <= 0 || offset < limit; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("index recent: %w", err)
		}
		n := s.pageSize
		if limit > 0 {
			n = min(n, limit-offset)
		}
		papers, err := s.store.RecentPapers(ctx, n, offset)
		if err != nil {
			return total, fmt.Errorf("recent papers at %d: %w", offset, err)
		}
		total.merge(s.IndexPapers(ctx, papers))
		if len(papers) < n {
			break
		}
	}
	return total, nil
}
