package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	kberrors "github.com/carekb/carekb/internal/errors"
)

// flatIndexMagic identifies a persisted flat index file.
const flatIndexMagic = "CKBV"

// flatIndexVersion is the current on-disk format version. Version 2
// added the corpus fingerprint.
const flatIndexVersion uint32 = 2

// maxFingerprintLen bounds the fingerprint field when reading; a hex
// sha256 digest is 64 bytes.
const maxFingerprintLen = 128

// FlatIndex is an exact L2 nearest-neighbor index over chunk embeddings.
// Row N holds the embedding of chunk N of the corpus chunk sequence at the
// time of the last rebuild; the index never decides ordering itself.
// Immutable between builds: no incremental upsert or delete.
type FlatIndex struct {
	mu          sync.RWMutex
	dims        int
	fingerprint string
	vectors     [][]float32
}

// ChunkFingerprint derives a stable identifier for a chunk sequence from
// the ordered chunk IDs. An index built from one sequence only matches
// metadata carrying the same fingerprint; any add, remove, or reorder
// changes it.
func ChunkFingerprint(chunks []Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.ChunkID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewFlatIndex creates an empty index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// Append adds a row. The first row fixes the index dimensionality.
func (ix *FlatIndex) Append(vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	if ix.dims == 0 {
		ix.dims = len(vec)
	}
	if len(vec) != ix.dims {
		return fmt.Errorf("vector dimension mismatch: index has %d, got %d", ix.dims, len(vec))
	}

	row := make([]float32, len(vec))
	copy(row, vec)
	ix.vectors = append(ix.vectors, row)
	return nil
}

// SetFingerprint records the fingerprint of the chunk sequence this
// index was built from.
func (ix *FlatIndex) SetFingerprint(fp string) {
	ix.mu.Lock()
	ix.fingerprint = fp
	ix.mu.Unlock()
}

// Fingerprint returns the fingerprint of the chunk sequence this index
// was built from, or "" for an empty index.
func (ix *FlatIndex) Fingerprint() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.fingerprint
}

// Len returns the number of rows.
func (ix *FlatIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dims returns the index dimensionality (0 when empty).
func (ix *FlatIndex) Dims() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// Search returns the k nearest rows to the query by L2 distance, each
// converted to similarity 1/(1+d): bounded in (0,1], monotonically
// decreasing in distance.
func (ix *FlatIndex) Search(query []float32, k int) ([]VectorResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 || k <= 0 {
		return []VectorResult{}, nil
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("query dimension mismatch: index has %d, got %d", ix.dims, len(query))
	}

	results := make([]VectorResult, 0, len(ix.vectors))
	for i, row := range ix.vectors {
		d := l2Distance(query, row)
		results = append(results, VectorResult{
			ChunkIndex: i,
			Similarity: 1.0 / (1.0 + d),
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Similarity > results[b].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// l2Distance computes the Euclidean distance between two vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Save persists the index atomically (temp file + rename). On failure the
// previously persisted file is left untouched.
func (ix *FlatIndex) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := ix.write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (ix *FlatIndex) write(w io.Writer) error {
	if _, err := w.Write([]byte(flatIndexMagic)); err != nil {
		return err
	}
	header := []uint32{flatIndexVersion, uint32(ix.dims), uint32(len(ix.vectors)), uint32(len(ix.fingerprint))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte(ix.fingerprint)); err != nil {
		return err
	}
	for _, row := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

// LoadFlatIndex reads a persisted index. A missing file is a valid empty
// state (no rebuild performed yet), not an error; a malformed file is.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewFlatIndex(), nil
	}
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeFilePermission, err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(flatIndexMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != flatIndexMagic {
		return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("index file %s has invalid header", path), err)
	}

	var version, dims, count, fpLen uint32
	for _, dst := range []*uint32{&version, &dims, &count, &fpLen} {
		if err := binary.Read(f, binary.LittleEndian, dst); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
				fmt.Sprintf("index file %s is truncated", path), err)
		}
	}
	if version != flatIndexVersion {
		return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("index file %s has unsupported version %d", path, version), nil)
	}
	if fpLen > maxFingerprintLen {
		return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("index file %s has invalid fingerprint length %d", path, fpLen), nil)
	}
	fp := make([]byte, fpLen)
	if _, err := io.ReadFull(f, fp); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
			fmt.Sprintf("index file %s is truncated", path), err)
	}

	ix := &FlatIndex{dims: int(dims), fingerprint: string(fp), vectors: make([][]float32, 0, count)}
	for i := uint32(0); i < count; i++ {
		row := make([]float32, dims)
		if err := binary.Read(f, binary.LittleEndian, row); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeIndexCorrupt,
				fmt.Sprintf("index file %s is truncated at row %d", path, i), err)
		}
		ix.vectors = append(ix.vectors, row)
	}

	return ix, nil
}
