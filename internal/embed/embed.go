// Package embed adapts the image/text embedding collaborator: a CLIP model
// served as an HTTP sidecar. The model handle lives in the sidecar process
// and is reused across requests; this client treats it as an opaque call.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Embedder produces unit-norm vectors of one fixed dimension for both
// images and text, so image and text vectors are comparable by inner
// product.
type Embedder interface {
	// EmbedImages returns one vector per path, input order preserved.
	EmbedImages(ctx context.Context, paths []string, batchSize int) ([][]float32, error)

	// EmbedText returns a single vector for the query string.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ClipClient talks to the CLIP serving sidecar.
type ClipClient struct {
	baseURL string
	client  *http.Client
}

// NewClipClient creates a client for the sidecar at baseURL.
func NewClipClient(baseURL string) *ClipClient {
	return &ClipClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type imagesRequest struct {
	Paths []string `json:"paths"`
}

type imagesResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type textRequest struct {
	Text string `json:"text"`
}

type textResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedImages embeds the images in batches of batchSize, preserving input
// order. All vectors must share one dimension; each is re-normalized
// defensively before being returned.
func (c *ClipClient) EmbedImages(ctx context.Context, paths []string, batchSize int) ([][]float32, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	vectors := make([][]float32, 0, len(paths))
	dim := 0
	for start := 0; start < len(paths); start += batchSize {
		end := start + batchSize
		if end > len(paths) {
			end = len(paths)
		}

		var resp imagesResponse
		if err := c.post(ctx, "/embed/images", imagesRequest{Paths: paths[start:end]}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embed server returned %d vectors for %d images", len(resp.Embeddings), end-start)
		}

		for _, v := range resp.Embeddings {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("embed server returned inconsistent dimensions: %d and %d", dim, len(v))
			}
			vectors = append(vectors, Normalize(v))
		}
	}
	return vectors, nil
}

// EmbedText embeds a single query string.
func (c *ClipClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp textResponse
	if err := c.post(ctx, "/embed/text", textRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed server returned an empty text vector")
	}
	return Normalize(resp.Embedding), nil
}

func (c *ClipClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embed server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("embed server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embed response: %w", err)
	}
	return nil
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged rather than divided by zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
