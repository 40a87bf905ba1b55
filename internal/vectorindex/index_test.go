package vectorindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kailas-cloud/paperfeed/internal/domain"
)

func openTest(t *testing.T, dir string, dim int) *Index {
	t.Helper()
	idx, err := Open(dir, dim, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func TestOpen_EmptyDir(t *testing.T) {
	idx := openTest(t, t.TempDir(), 3)
	if idx.State() != StateEmpty {
		t.Errorf("expected empty, got %s", idx.State())
	}
	if idx.Len() != 0 {
		t.Errorf("expected 0 vectors, got %d", idx.Len())
	}
}

func TestOpen_InvalidDimension(t *testing.T) {
	if _, err := Open(t.TempDir(), 0, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAdd_KeepsIDsAndVectorsAligned(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)

	if err := idx.Add([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add([]string{"c"}, [][]float32{{1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if idx.Len() != 3 {
		t.Errorf("expected 3 vectors, got %d", idx.Len())
	}
	if len(idx.ids)*idx.dim != len(idx.vectors) {
		t.Errorf("ids/vectors out of step: %d ids, %d floats", len(idx.ids), len(idx.vectors))
	}
	if idx.State() != StatePersisted {
		t.Errorf("expected persisted, got %s", idx.State())
	}
	if !idx.Has("c") || idx.Has("z") {
		t.Error("Has reports wrong membership")
	}
}

func TestAdd_RejectsWholeCall(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		vectors [][]float32
		want    error
	}{
		{"count mismatch", []string{"a", "b"}, [][]float32{{1, 0}}, domain.ErrInvalidArgument},
		{"dim mismatch", []string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}}, domain.ErrVectorDimMismatch},
		{"zero vector", []string{"a", "b"}, [][]float32{{1, 0}, {0, 0}}, domain.ErrInvalidVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := openTest(t, t.TempDir(), 2)
			err := idx.Add(tt.ids, tt.vectors)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if idx.Len() != 0 {
				t.Errorf("rejected call must not append, got %d", idx.Len())
			}
		})
	}
}

func TestAdd_NormalizesVectors(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if err := idx.Add([]string{"a"}, [][]float32{{3, 4}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	var norm float64
	for _, v := range idx.vectors {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("expected unit vector, norm^2 = %f", norm)
	}
}

func TestAdd_PersistFailureKeepsAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	idx := New(dir, 2, nil) // dir never created

	err := idx.Add([]string{"a"}, [][]float32{{1, 0}})
	if !errors.Is(err, domain.ErrIndexPersist) {
		t.Fatalf("expected ErrIndexPersist, got %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("expected in-memory append kept, got %d", idx.Len())
	}
	if idx.State() != StatePopulated {
		t.Errorf("expected populated, got %s", idx.State())
	}
	if err := idx.HealthCheck(context.Background()); !errors.Is(err, domain.ErrIndexPersist) {
		t.Errorf("unpersisted index should report unhealthy, got %v", err)
	}
}

func TestHealthCheck_PersistedIndex(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if err := idx.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected health error: %v", err)
	}
}

func TestSearch_RanksByInnerProduct(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	err := idx.Add(
		[]string{"east", "north", "northeast", "west"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, 0}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := idx.Search([]float32{2, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"east", "northeast", "north"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].ID != id {
			t.Errorf("hit %d: expected %s, got %s", i, id, hits[i].ID)
		}
	}
	if math.Abs(hits[0].Similarity-1) > 1e-6 || math.Abs(hits[0].Distance) > 1e-6 {
		t.Errorf("unexpected top hit: %+v", hits[0])
	}
	if math.Abs(hits[2].Distance-1) > 1e-6 {
		t.Errorf("orthogonal hit distance should be 1, got %f", hits[2].Distance)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if err := idx.Add([]string{"a", "b", "c"}, [][]float32{{1, 0}, {1, 0}, {1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hits, err := idx.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ID != "a" || hits[1].ID != "b" {
		t.Errorf("expected [a b], got [%s %s]", hits[0].ID, hits[1].ID)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	hits, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if err := idx.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hits, err := idx.Search([]float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if _, err := idx.Search([]float32{1, 0, 0}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	if _, err := idx.Search([]float32{0, 0}, 1); !errors.Is(err, domain.ErrInvalidVector) {
		t.Errorf("expected ErrInvalidVector, got %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestReopen_LoadsPersistedState(t *testing.T) {
	dir := t.TempDir()
	idx := openTest(t, dir, 2)
	if err := idx.Add([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened := openTest(t, dir, 2)
	if reopened.State() != StateLoaded {
		t.Errorf("expected loaded, got %s", reopened.State())
	}
	if reopened.Len() != 2 {
		t.Fatalf("expected 2 vectors, got %d", reopened.Len())
	}
	hits, err := reopened.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ID != "b" {
		t.Errorf("expected b, got %s", hits[0].ID)
	}
}

func TestAddNew_SkipsPresentAndRepeatedIDs(t *testing.T) {
	dir := t.TempDir()
	idx := openTest(t, dir, 2)
	if err := idx.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := idx.AddNew([]string{"a", "b", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {0, 2}, {1, 1}})
	if err != nil {
		t.Fatalf("AddNew: %v", err)
	}
	if n != 2 || idx.Len() != 3 {
		t.Errorf("expected 2 appended and 3 total, got %d and %d", n, idx.Len())
	}
	if n, err := idx.AddNew([]string{"a", "c"}, [][]float32{{1, 0}, {1, 1}}); err != nil || n != 0 {
		t.Errorf("expected nothing appended, got %d, %v", n, err)
	}

	hits, err := idx.Search([]float32{0, 1}, 1)
	if err != nil || len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("expected b as nearest, got %v, %v", hits, err)
	}
	if reopened := openTest(t, dir, 2); reopened.Len() != 3 {
		t.Errorf("expected 3 persisted vectors, got %d", reopened.Len())
	}
}

func TestAddNew_ConcurrentSameIDs(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	ids := []string{"a", "b", "c"}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := idx.AddNew(ids, vectors)
			if err != nil {
				t.Errorf("AddNew: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != len(ids) || idx.Len() != len(ids) {
		t.Errorf("expected each id once, got appended=%d len=%d", total, idx.Len())
	}
}

func TestReopen_InconsistentFilesStartEmpty(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, dir string)
	}{
		{"ids missing", func(t *testing.T, dir string) {
			mustRemove(t, filepath.Join(dir, idsFile))
		}},
		{"vectors missing", func(t *testing.T, dir string) {
			mustRemove(t, filepath.Join(dir, vectorsFile))
		}},
		{"count mismatch", func(t *testing.T, dir string) {
			mustWrite(t, filepath.Join(dir, idsFile), `["a"]`)
		}},
		{"corrupt ids", func(t *testing.T, dir string) {
			mustWrite(t, filepath.Join(dir, idsFile), `{not json`)
		}},
		{"truncated vectors", func(t *testing.T, dir string) {
			mustWrite(t, filepath.Join(dir, vectorsFile), "PFVX")
		}},
		{"header count exceeds file size", func(t *testing.T, dir string) {
			mustWriteHeader(t, filepath.Join(dir, vectorsFile), header{
				Magic: fileMagic, Version: fileVersion, Dim: 2, Count: math.MaxUint32,
			})
			mustWrite(t, filepath.Join(dir, idsFile), `[]`)
		}},
		{"trailing bytes", func(t *testing.T, dir string) {
			f, err := os.OpenFile(filepath.Join(dir, vectorsFile), os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			if _, err := f.Write([]byte{0, 0, 0, 0}); err != nil {
				t.Fatal(err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			idx := openTest(t, dir, 2)
			if err := idx.Add([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}); err != nil {
				t.Fatalf("Add: %v", err)
			}
			tt.corrupt(t, dir)

			reopened := openTest(t, dir, 2)
			if reopened.State() != StateEmpty || reopened.Len() != 0 {
				t.Errorf("expected empty index, got %s with %d", reopened.State(), reopened.Len())
			}
		})
	}
}

func TestReopen_DimensionChangeStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx := openTest(t, dir, 2)
	if err := idx.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if reopened := openTest(t, dir, 3); reopened.Len() != 0 {
		t.Errorf("expected empty index after dim change, got %d", reopened.Len())
	}
}

func TestConcurrentSearchDuringAdd(t *testing.T) {
	idx := openTest(t, t.TempDir(), 2)
	if err := idx.Add([]string{"seed"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := idx.Search([]float32{1, float32(i)}, 3); err != nil {
					t.Errorf("Search: %v", err)
					return
				}
			}
		}()
	}
	for i := range 5 {
		id := string(rune('a' + i))
		if err := idx.Add([]string{id}, [][]float32{{0, 1}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	wg.Wait()

	if idx.Len() != 6 {
		t.Errorf("expected 6 vectors, got %d", idx.Len())
	}
}

func mustRemove(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func mustWriteHeader(t *testing.T, path string, h header) {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, path, buf.String())
}
