package index

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func unit(vals ...float32) []float32 {
	var norm float64
	for _, v := range vals {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func TestBuildEmptyInput(t *testing.T) {
	_, err := Build(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestBuildRaggedInput(t *testing.T) {
	_, err := Build([][]float32{{1, 0}, {1, 0, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchRanksByInnerProduct(t *testing.T) {
	vectors := [][]float32{
		unit(1, 0, 0),
		unit(0, 1, 0),
		unit(1, 1, 0),
	}
	ix, err := Build(vectors)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := ix.Search(unit(1, 0, 0), 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Position != 0 {
		t.Errorf("expected position 0 first, got %d", results[0].Position)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-5 {
		t.Errorf("self-similarity should be ~1.0, got %f", results[0].Score)
	}
	for _, r := range results {
		if r.Score < -1.0001 || r.Score > 1.0001 {
			t.Errorf("score out of [-1,1]: %f", r.Score)
		}
	}
	// cos 45° beats cos 90°
	if results[1].Position != 2 || results[2].Position != 1 {
		t.Errorf("unexpected ranking: %+v", results)
	}
}

func TestSearchTieBreaksByPosition(t *testing.T) {
	v := unit(1, 1)
	ix, err := Build([][]float32{v, v, v})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := ix.Search(v, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i, r := range results {
		if r.Position != i {
			t.Errorf("tied scores must keep ascending position order, got %+v", results)
			break
		}
	}
}

func TestSearchKLargerThanCorpus(t *testing.T) {
	ix, err := Build([][]float32{unit(1, 0), unit(0, 1)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := ix.Search(unit(1, 0), 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected full corpus, got %d results", len(results))
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix, err := Build([][]float32{unit(1, 0, 0)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := ix.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	vectors := [][]float32{
		unit(1, 0, 0),
		unit(0, 1, 0),
		unit(0, 0, 1),
		unit(1, 1, 1),
	}
	ix, err := Build(vectors)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "frames", "job.bin")
	if err := ix.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != ix.Len() || loaded.Dim() != ix.Dim() {
		t.Fatalf("shape mismatch after load: %dx%d vs %dx%d",
			loaded.Len(), loaded.Dim(), ix.Len(), ix.Dim())
	}

	// Querying with each indexed vector must return its own position on top
	// with score ~1.0, and the full ranking must match the in-memory index.
	for i, v := range vectors {
		want, err := ix.Search(v, len(vectors))
		if err != nil {
			t.Fatalf("search original: %v", err)
		}
		got, err := loaded.Search(v, len(vectors))
		if err != nil {
			t.Fatalf("search loaded: %v", err)
		}
		if got[0].Position != i {
			t.Errorf("query %d: expected self on top, got position %d", i, got[0].Position)
		}
		if math.Abs(float64(got[0].Score)-1.0) > 1e-5 {
			t.Errorf("query %d: expected self score ~1.0, got %f", i, got[0].Score)
		}
		for j := range want {
			if want[j].Position != got[j].Position {
				t.Errorf("query %d: ranking diverged at %d: %+v vs %+v", i, j, want, got)
				break
			}
		}
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.bin")
	ix, err := Build([][]float32{unit(1, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(path); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("loading a missing file should fail")
	}
}
