// Package vectorindex implements a flat inner-product index over unit vectors
// persisted as a pair of files: a binary vector matrix and a JSON id list.
package vectorindex

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// State describes the index lifecycle.
type State int

// Index lifecycle states.
const (
	StateUninitialized State = iota
	StateEmpty
	StateLoaded
	StatePopulated
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StatePopulated:
		return "populated"
	case StatePersisted:
		return "persisted"
	default:
		return "uninitialized"
	}
}

// Index is a flat inner-product index. Searches run concurrently; Add calls are serialized.
type Index struct {
	writeMu sync.Mutex // serializes Add (append + persist)

	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors []float32 // row-major, len == len(ids)*dim
	idSet   map[string]struct{}
	state   State

	dir    string
	logger *zap.Logger
}

// Open loads the index from dir, creating the directory when needed.
// Missing files yield an empty index; a corrupt or inconsistent pair is logged
// and replaced by an empty index.
func Open(dir string, dim int, logger *zap.Logger) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d: %w", dim, domain.ErrInvalidArgument)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	idx := &Index{
		dim:    dim,
		idSet:  make(map[string]struct{}),
		dir:    dir,
		logger: logger,
	}
	idx.load()
	metrics.IndexVectors.Set(float64(len(idx.ids)))
	return idx, nil
}

// New returns an empty in-memory index that persists to dir on Add.
func New(dir string, dim int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		dim:    dim,
		idSet:  make(map[string]struct{}),
		state:  StateEmpty,
		dir:    dir,
		logger: logger,
	}
}

func (x *Index) load() {
	ids, vectors, err := readFiles(x.dir, x.dim)
	switch {
	case err == nil && ids == nil:
		x.state = StateEmpty
		metrics.IndexOperationsTotal.WithLabelValues("load", "empty").Inc()
		return
	case err != nil:
		x.logger.Warn("vector index inconsistent, starting empty",
			zap.String("dir", x.dir), zap.Error(err))
		x.state = StateEmpty
		metrics.IndexOperationsTotal.WithLabelValues("load", "error").Inc()
		return
	}

	x.ids = ids
	x.vectors = vectors
	for _, id := range ids {
		x.idSet[id] = struct{}{}
	}
	x.state = StateLoaded
	metrics.IndexOperationsTotal.WithLabelValues("load", "ok").Inc()
	x.logger.Info("vector index loaded", zap.String("dir", x.dir), zap.Int("vectors", len(ids)))
}

// Add appends vectors for ids and persists the index.
// The whole call is rejected when counts differ, any dimension mismatches or any
// vector is zero. On persist failure the in-memory append is kept and
// ErrIndexPersist is returned.
func (x *Index) Add(ids []string, vectors [][]float32) error {
	_, err := x.add(ids, vectors, false)
	return err
}

// AddNew is Add for ids not yet in the index. Ids already present, or repeated
// within the call, are dropped under the writer lock, so concurrent callers
// never append the same id twice. It returns the number of vectors appended.
func (x *Index) AddNew(ids []string, vectors [][]float32) (int, error) {
	return x.add(ids, vectors, true)
}

func (x *Index) add(ids []string, vectors [][]float32, skipExisting bool) (int, error) {
	if len(ids) != len(vectors) {
		metrics.IndexOperationsTotal.WithLabelValues("add", "invalid").Inc()
		return 0, fmt.Errorf("%d ids for %d vectors: %w", len(ids), len(vectors), domain.ErrInvalidArgument)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	flat := make([]float32, 0, len(vectors)*x.dim)
	for i, v := range vectors {
		if len(v) != x.dim {
			metrics.IndexOperationsTotal.WithLabelValues("add", "invalid").Inc()
			return 0, fmt.Errorf("vector %d (%s) has %d dims, want %d: %w",
				i, ids[i], len(v), x.dim, domain.ErrVectorDimMismatch)
		}
		n, err := domain.Normalize(v)
		if err != nil {
			metrics.IndexOperationsTotal.WithLabelValues("add", "invalid").Inc()
			return 0, fmt.Errorf("vector %d (%s): %w", i, ids[i], err)
		}
		flat = append(flat, n...)
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	// idSet only changes under writeMu.
	if skipExisting {
		ids, flat = x.dropPresent(ids, flat)
		if len(ids) == 0 {
			metrics.IndexOperationsTotal.WithLabelValues("add", "skipped").Inc()
			return 0, nil
		}
	}

	x.mu.Lock()
	x.ids = append(x.ids, ids...)
	x.vectors = append(x.vectors, flat...)
	for _, id := range ids {
		x.idSet[id] = struct{}{}
	}
	x.state = StatePopulated
	snapIDs, snapVecs := x.ids, x.vectors
	x.mu.Unlock()

	metrics.IndexVectors.Set(float64(len(snapIDs)))

	if err := writeFiles(x.dir, x.dim, snapIDs, snapVecs); err != nil {
		metrics.IndexOperationsTotal.WithLabelValues("persist", "error").Inc()
		return len(ids), fmt.Errorf("persist %d vectors: %w: %w", len(snapIDs), domain.ErrIndexPersist, err)
	}

	x.mu.Lock()
	if len(x.ids) == len(snapIDs) {
		x.state = StatePersisted
	}
	x.mu.Unlock()

	metrics.IndexOperationsTotal.WithLabelValues("add", "ok").Inc()
	return len(ids), nil
}

// dropPresent filters out rows whose id is indexed or repeats an earlier row.
func (x *Index) dropPresent(ids []string, flat []float32) ([]string, []float32) {
	keepIDs := make([]string, 0, len(ids))
	keepVecs := make([]float32, 0, len(flat))
	batch := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if _, ok := x.idSet[id]; ok {
			continue
		}
		if _, ok := batch[id]; ok {
			continue
		}
		batch[id] = struct{}{}
		keepIDs = append(keepIDs, id)
		keepVecs = append(keepVecs, flat[i*x.dim:(i+1)*x.dim]...)
	}
	return keepIDs, keepVecs
}

// Search returns up to k ids ranked by inner product with vector, best first.
func (x *Index) Search(vector []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidArgument)
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("query has %d dims, want %d: %w", len(vector), x.dim, domain.ErrVectorDimMismatch)
	}
	q, err := domain.Normalize(vector)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	start := time.Now()
	defer func() { metrics.IndexSearchDuration.Observe(time.Since(start).Seconds()) }()

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	if n == 0 {
		return []domain.VectorHit{}, nil
	}

	h := make(minHeap, 0, min(k, n))
	for row := range n {
		sim := domain.Dot(q, x.vectors[row*x.dim:(row+1)*x.dim])
		e := scored{row: row, sim: sim}
		if len(h) < k {
			heap.Push(&h, e)
			continue
		}
		if e.better(h[0]) {
			h[0] = e
			heap.Fix(&h, 0)
		}
	}

	hits := make([]domain.VectorHit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		e := heap.Pop(&h).(scored) //nolint:errcheck,forcetypeassert // heap holds only scored
		hits[i] = domain.VectorHit{ID: x.ids[e.row], Similarity: e.sim, Distance: 1 - e.sim}
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Has reports whether id is indexed.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.idSet[id]
	return ok
}

// State returns the lifecycle state.
func (x *Index) State() State {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// Dimension returns the configured vector dimension.
func (x *Index) Dimension() int { return x.dim }

// HealthCheck fails when the index was never opened or holds vectors that
// did not reach disk.
func (x *Index) HealthCheck(_ context.Context) error {
	switch st := x.State(); st {
	case StateUninitialized, StatePopulated:
		return fmt.Errorf("index %s: %w", st, domain.ErrIndexPersist)
	default:
		return nil
	}
}

type scored struct {
	row int
	sim float64
}

// better orders by similarity, then by insertion order.
func (a scored) better(b scored) bool {
	if a.sim != b.sim {
		return a.sim > b.sim
	}
	return a.row < b.row
}

// minHeap keeps the worst retained hit at the root.
type minHeap []scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[j].better(h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(v any)        { *h = append(*h, v.(scored)) } //nolint:forcetypeassert // heap.Interface
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
