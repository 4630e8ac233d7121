package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", sum)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should pass through, got %v", zero)
	}
}

func TestEmbedImagesBatchesAndPreservesOrder(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/images" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Paths []string `json:"paths"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		batches = append(batches, req.Paths)

		// Encode each path's batch-relative position into the vector so
		// order is checkable downstream.
		out := struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{}
		for _, p := range req.Paths {
			out.Embeddings = append(out.Embeddings, []float32{float32(len(p)), 1})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := NewClipClient(srv.URL)
	paths := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := c.EmbedImages(context.Background(), paths, 2)
	if err != nil {
		t.Fatalf("embed images: %v", err)
	}

	if len(batches) != 3 {
		t.Errorf("expected 3 batches of size <=2, got %d", len(batches))
	}
	if len(vectors) != len(paths) {
		t.Fatalf("expected %d vectors, got %d", len(paths), len(vectors))
	}
	// Ratio of components survives normalization, so ordering is testable.
	for i := range paths {
		ratio := vectors[i][0] / vectors[i][1]
		if math.Abs(float64(ratio)-float64(len(paths[i]))) > 1e-5 {
			t.Errorf("vector %d out of order: ratio %f want %d", i, ratio, len(paths[i]))
		}
	}
}

func TestEmbedImagesRejectsInconsistentDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[1,0],[1,0,0]]}`))
	}))
	defer srv.Close()

	c := NewClipClient(srv.URL)
	if _, err := c.EmbedImages(context.Background(), []string{"a", "b"}, 10); err == nil {
		t.Error("inconsistent dimensions should be rejected")
	}
}

func TestEmbedTextNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer srv.Close()

	c := NewClipClient(srv.URL)
	v, err := c.EmbedText(context.Background(), "sunset over water")
	if err != nil {
		t.Fatalf("embed text: %v", err)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("text vector should be unit norm, got %f", sum)
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClipClient(srv.URL)
	if _, err := c.EmbedText(context.Background(), "q"); err == nil {
		t.Error("server error should propagate")
	}
}
