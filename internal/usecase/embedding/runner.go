package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	dombatch "github.com/kailas-cloud/paperfeed/internal/domain/batch"
	"github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// Runner defaults.
const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 200 * time.Millisecond
)

// RunnerConfig configures batch splitting, pacing and parallelism.
type RunnerConfig struct {
	BatchSize int
	// Delay is the minimum spacing between batch starts. Zero disables pacing.
	Delay time.Duration
	// Workers bounds how many batches run at once. Values below 2 run sequentially.
	Workers int
}

// BatchFunc receives the normalized vectors of one successful batch that
// started at offset start of the input. Returning an error fails the batch.
type BatchFunc func(ctx context.Context, start int, vectors [][]float32) error

// Runner embeds long text lists in paced batches. A failed batch is logged
// and skipped; the remaining batches still run.
type Runner struct {
	embedder domain.Embedder
	cfg      RunnerConfig
}

// NewRunner creates a batch runner.
func NewRunner(embedder domain.Embedder, cfg RunnerConfig) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{embedder: embedder, cfg: cfg}
}

// Run embeds texts and calls onBatch for every batch that succeeded.
// With more than one worker onBatch may be called concurrently.
// Results are ordered by batch start.
func (r *Runner) Run(ctx context.Context, texts []string, onBatch BatchFunc) []dombatch.Result {
	if len(texts) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	limit := rate.Inf
	if r.cfg.Delay > 0 {
		limit = rate.Every(r.cfg.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	n := (len(texts) + r.cfg.BatchSize - 1) / r.cfg.BatchSize
	results := make([]dombatch.Result, n)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for b := range n {
		start := b * r.cfg.BatchSize
		end := min(start+r.cfg.BatchSize, len(texts))

		if err := limiter.Wait(ctx); err != nil {
			// Context is done: this and every later batch fail without a provider call.
			for rest := b; rest < n; rest++ {
				s := rest * r.cfg.BatchSize
				results[rest] = dombatch.NewError(s, min(s+r.cfg.BatchSize, len(texts))-s,
					fmt.Errorf("batch not started: %w", err))
			}
			break
		}

		g.Go(func() error {
			results[b] = r.runBatch(ctx, log, start, texts[start:end], onBatch)
			return nil
		})
	}
	_ = g.Wait() // batch goroutines never return errors

	stats := dombatch.Summarize(results)
	metrics.EmbeddingBatchesTotal.WithLabelValues("ok").Add(float64(stats.Succeeded))
	metrics.EmbeddingBatchesTotal.WithLabelValues("error").Add(float64(stats.Failed))
	if stats.Failed > 0 {
		log.Warn("embedding batches failed",
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("texts", len(texts)))
	}
	return results
}

func (r *Runner) runBatch(
	ctx context.Context, log *zap.Logger, start int, texts []string, onBatch BatchFunc,
) dombatch.Result {
	fail := func(err error) dombatch.Result {
		log.Warn("embedding batch skipped",
			zap.Int("start", start),
			zap.Int("size", len(texts)),
			zap.Error(err))
		return dombatch.NewError(start, len(texts), err)
	}

	res, err := domain.BatchEmbed(ctx, r.embedder, texts)
	if err != nil {
		return fail(fmt.Errorf("embed batch at %d: %w", start, err))
	}
	if len(res.Embeddings) != len(texts) {
		return fail(fmt.Errorf("got %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, v := range res.Embeddings {
		nv, err := domain.Normalize(v)
		if err != nil {
			return fail(fmt.Errorf("vector %d of batch at %d: %w", i, start, err))
		}
		vectors[i] = nv
	}

	if onBatch != nil {
		if err := onBatch(ctx, start, vectors); err != nil {
			return fail(fmt.Errorf("handle batch at %d: %w", start, err))
		}
	}
	return dombatch.NewOK(start, len(texts))
}

// EmbedAll embeds texts and returns one vector per text; entries of failed
// batches are nil.
func (r *Runner) EmbedAll(ctx context.Context, texts []string) ([][]float32, dombatch.Stats) {
	out := make([][]float32, len(texts))
	var mu sync.Mutex
	results := r.Run(ctx, texts, func(_ context.Context, start int, vectors [][]float32) error {
		mu.Lock()
		copy(out[start:], vectors)
		mu.Unlock()
		return nil
	})
	return out, dombatch.Summarize(results)
}
