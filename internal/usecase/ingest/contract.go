package ingest

import (
	"context"

	dombatch "github.com/kailas-cloud/paperfeed/internal/domain/batch"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	"github.com/kailas-cloud/paperfeed/internal/usecase/embedding"
)

// PaperStore reads and writes paper records.
type PaperStore interface {
	SavePapers(ctx context.Context, papers []paper.Paper) error
	GetPapers(ctx context.Context, ids []string) ([]paper.Paper, error)
	RecentPapers(ctx context.Context, limit, offset int) ([]paper.Paper, error)
}

// VectorIndex is the write side of the index. AddNew drops ids that are
// already present under the index's writer lock and returns how many it appended.
type VectorIndex interface {
	Has(id string) bool
	AddNew(ids []string, vectors [][]float32) (int, error)
}

// BatchRunner embeds texts in batches and hands each successful batch to onBatch.
type BatchRunner interface {
	Run(ctx context.Context, texts []string, onBatch embedding.BatchFunc) []dombatch.Result
}
