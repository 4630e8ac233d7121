package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrEmptyInput is returned when building an index from no vectors.
var ErrEmptyInput = errors.New("index: empty input")

// ErrDimensionMismatch is returned when a vector's dimension doesn't match
// the index.
var ErrDimensionMismatch = errors.New("index: dimension mismatch")

// File format: magic, version, dim, count as little-endian uint32, followed
// by count*dim float32 values in row order.
const (
	fileMagic   = uint32(0x53464958) // "SFIX"
	fileVersion = uint32(1)
)

// Index is an exact inner-product index over unit-norm vectors. Because both
// sides are unit-norm, inner product equals cosine similarity and scores lie
// in [-1, 1]. The corpus is one video's worth of sampled frames, so a
// brute-force scan beats approximate indexing on correctness and
// reproducibility with no meaningful latency cost.
//
// An Index is immutable after Build and safe for concurrent Search calls.
type Index struct {
	dim     int
	vectors [][]float32
}

// Result is a single search hit. Position indexes into the build-time order.
type Result struct {
	Score    float32 `json:"score"`
	Position int     `json:"position"`
}

// Build constructs an index over the given vectors. The slice order is
// preserved: Search results reference positions in this order. Fails with
// ErrEmptyInput on an empty list and ErrDimensionMismatch on ragged input.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vector at position 0", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dim %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	return &Index{dim: dim, vectors: vectors}, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	return len(ix.vectors)
}

// Dim returns the vector dimension.
func (ix *Index) Dim() int {
	return ix.dim
}

// Search returns up to k results sorted by descending inner-product score.
// Ties are broken by ascending position so identical inputs always produce
// identical output. k larger than the corpus returns the full corpus, ranked.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dim %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]Result, len(ix.vectors))
	for i, v := range ix.vectors {
		var dot float32
		for j, q := range query {
			dot += q * v[j]
		}
		results[i] = Result{Score: dot, Position: i}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Position < results[b].Position
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Save writes the index to path. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial index.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	header := []uint32{fileMagic, fileVersion, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			tmp.Close()
			return fmt.Errorf("write index header: %w", err)
		}
	}
	for _, v := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

// Load reads an index previously written by Save. Vectors and their order
// round-trip exactly, so a fixed query reproduces the same ranking.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("read index header: %w", err)
		}
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("not an index file: %s", path)
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	if dim == 0 || count == 0 {
		return nil, fmt.Errorf("corrupt index header: dim=%d count=%d", dim, count)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = v
	}

	// Trailing bytes mean the file doesn't match its header.
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("corrupt index file: trailing data after %d vectors", count)
	}

	return &Index{dim: int(dim), vectors: vectors}, nil
}
