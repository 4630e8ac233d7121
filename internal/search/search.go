// Package search is the query-time façade: it gates on job state, dispatches
// to transcript or scene search, and shapes ranked hits into clip references.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/gwlsn/scenefinder/internal/artifacts"
	"github.com/gwlsn/scenefinder/internal/embed"
	"github.com/gwlsn/scenefinder/internal/index"
	"github.com/gwlsn/scenefinder/internal/jobs"
	"github.com/gwlsn/scenefinder/internal/logger"
	"github.com/gwlsn/scenefinder/internal/transcript"
)

// Sentinel errors for query gating.
var (
	ErrNotFound  = errors.New("job not found")
	ErrWrongMode = errors.New("job has a different mode")

	// ErrIndexMissing means the scene index files are absent even though
	// the job row claims ready. This is a server-side consistency fault,
	// not a caller mistake.
	ErrIndexMissing = errors.New("scene index missing")
)

// NotReadyError rejects a query against a job that hasn't reached its
// terminal success stage. It carries the stage the job is currently in.
type NotReadyError struct {
	Stage jobs.Stage
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("job not ready (stage: %s)", e.Stage)
}

// Hit is one ranked result. Text is present for audio hits only.
type Hit struct {
	Score     float64 `json:"score"`
	Start     float64 `json:"start"`
	Timestamp string  `json:"timestamp"`
	ClipURL   string  `json:"clip_url"`
	Text      string  `json:"text,omitempty"`
}

// Response splits ranked hits into the top hit and the rest. Best is null
// when nothing matched.
type Response struct {
	Best       *Hit  `json:"best"`
	Alternates []Hit `json:"alternates"`
}

// Service answers search queries over finished jobs.
type Service struct {
	store    jobs.Store
	layout   *artifacts.Layout
	embedder embed.Embedder
}

// NewService creates the retrieval façade.
func NewService(store jobs.Store, layout *artifacts.Layout, embedder embed.Embedder) *Service {
	return &Service{store: store, layout: layout, embedder: embedder}
}

// Query runs a text query against the job's persisted artifacts. The job
// must exist, be in the expected mode, and have reached its ready stage.
func (s *Service) Query(ctx context.Context, jobID string, mode jobs.Mode, query string, topK int, clipDuration float64) (*Response, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if job.Mode != mode {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrWrongMode, job.Mode, mode)
	}
	if !job.Ready() {
		return nil, &NotReadyError{Stage: job.Stage}
	}

	var hits []Hit
	if mode == jobs.ModeScene {
		hits, err = s.searchScene(ctx, jobID, query, topK, clipDuration)
	} else {
		hits, err = s.searchTranscript(jobID, query, topK, clipDuration)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Query answered", "job_id", jobID, "mode", mode, "hits", len(hits))

	resp := &Response{Alternates: []Hit{}}
	if len(hits) > 0 {
		resp.Best = &hits[0]
		resp.Alternates = hits[1:]
	}
	return resp, nil
}

func (s *Service) searchTranscript(jobID, query string, topK int, clipDuration float64) ([]Hit, error) {
	tr, err := transcript.Load(s.layout.TranscriptPath(jobID))
	if err != nil {
		return nil, fmt.Errorf("ready job has no transcript: %w", err)
	}

	matches := transcript.Search(tr.Segments, query, topK)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{
			Score:     float64(m.Score),
			Start:     m.Start,
			Timestamp: FormatTimestamp(m.Start),
			ClipURL:   clipURL(jobs.ModeAudio, jobID, m.Start, clipDuration),
			Text:      m.Text,
		})
	}
	return hits, nil
}

func (s *Service) searchScene(ctx context.Context, jobID, query string, topK int, clipDuration float64) ([]Hit, error) {
	vectorsPath := s.layout.SceneVectorsPath(jobID)
	metaPath := s.layout.SceneMetaPath(jobID)
	for _, p := range []string{vectorsPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, jobID)
		}
	}

	ix, err := index.Load(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("load scene index: %w", err)
	}
	meta, err := index.LoadMeta(metaPath)
	if err != nil {
		return nil, fmt.Errorf("load scene index meta: %w", err)
	}
	if ix.Len() != len(meta.Timestamps) {
		return nil, fmt.Errorf("scene index corrupt: %d vectors, %d timestamps", ix.Len(), len(meta.Timestamps))
	}

	qv, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := ix.Search(qv, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		start := meta.Timestamps[r.Position]
		hits = append(hits, Hit{
			Score:     float64(r.Score),
			Start:     start,
			Timestamp: FormatTimestamp(start),
			ClipURL:   clipURL(jobs.ModeScene, jobID, start, clipDuration),
		})
	}
	return hits, nil
}

// clipURL builds the clip-fetch reference for a hit.
func clipURL(mode jobs.Mode, jobID string, start, duration float64) string {
	q := url.Values{}
	q.Set("start", strconv.FormatFloat(start, 'f', -1, 64))
	q.Set("duration", strconv.FormatFloat(duration, 'f', -1, 64))
	return fmt.Sprintf("/%s/videos/%s/clip?%s", mode, jobID, q.Encode())
}

// FormatTimestamp renders seconds as zero-padded HH:MM:SS, clamped to
// non-negative and truncated (not rounded) to whole seconds.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
