package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
)

const (
	vectorsFile = "vectors.bin"
	idsFile     = "ids.json"

	fileVersion uint32 = 1
)

var fileMagic = [4]byte{'P', 'F', 'V', 'X'}

// header precedes the float32 matrix in the vectors file.
type header struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint32
}

// readFiles returns (nil, nil, nil) when neither file exists.
func readFiles(dir string, dim int) ([]string, []float32, error) {
	vecPath := filepath.Join(dir, vectorsFile)
	idPath := filepath.Join(dir, idsFile)

	vecExists, err := exists(vecPath)
	if err != nil {
		return nil, nil, err
	}
	idExists, err := exists(idPath)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case !vecExists && !idExists:
		return nil, nil, nil
	case !vecExists:
		return nil, nil, fmt.Errorf("%s present without %s", idsFile, vectorsFile)
	case !idExists:
		return nil, nil, fmt.Errorf("%s present without %s", vectorsFile, idsFile)
	}

	ids, err := readIDs(idPath)
	if err != nil {
		return nil, nil, err
	}
	vectors, count, err := readVectors(vecPath, dim)
	if err != nil {
		return nil, nil, err
	}
	if count != len(ids) {
		return nil, nil, fmt.Errorf("%d ids for %d vectors", len(ids), count)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, vectors, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func readIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from configured dir
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	return ids, nil
}

func readVectors(path string, dim int) ([]float32, int, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from configured dir
	if err != nil {
		return nil, 0, fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat vectors: %w", err)
	}

	r := bufio.NewReader(f)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if h.Magic != fileMagic {
		return nil, 0, fmt.Errorf("bad magic %q", h.Magic[:])
	}
	if h.Version != fileVersion {
		return nil, 0, fmt.Errorf("unsupported version %d", h.Version)
	}
	if int(h.Dim) != dim {
		return nil, 0, fmt.Errorf("file has %d dims, want %d", h.Dim, dim)
	}

	// The header count is checked against the file size before allocating.
	want := int64(binary.Size(header{})) + int64(h.Count)*int64(dim)*4
	if info.Size() != want {
		return nil, 0, fmt.Errorf("header claims %d vectors (%d bytes), file has %d bytes",
			h.Count, want, info.Size())
	}

	vectors := make([]float32, int(h.Count)*dim)
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return nil, 0, fmt.Errorf("read %d vectors: %w", h.Count, err)
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("trailing data after %d vectors", h.Count)
	}
	for _, v := range vectors {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, 0, errors.New("non-finite value in vectors")
		}
	}
	return vectors, int(h.Count), nil
}

// writeFiles replaces both files through temp-file renames.
// Vectors are written first so that a crash in between leaves a count mismatch
// that the next load detects.
func writeFiles(dir string, dim int, ids []string, vectors []float32) error {
	h := header{
		Magic:   fileMagic,
		Version: fileVersion,
		Dim:     uint32(dim),      //nolint:gosec // dim validated positive at Open
		Count:   uint32(len(ids)), //nolint:gosec // bounded by memory
	}
	err := writeAtomic(filepath.Join(dir, vectorsFile), func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, vectors); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return writeAtomic(filepath.Join(dir, idsFile), func(w io.Writer) error {
		if err := json.NewEncoder(w).Encode(ids); err != nil {
			return fmt.Errorf("encode ids: %w", err)
		}
		return nil
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after rename

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
