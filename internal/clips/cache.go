// Package clips materializes sub-clips on demand and caches them by
// content-addressed key.
package clips

import (
	"context"
	"fmt"
	"math"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/gwlsn/scenefinder/internal/artifacts"
	"github.com/gwlsn/scenefinder/internal/logger"
)

// Cutter is the media collaborator that produces a clip file. It must
// publish the output atomically: no reader may observe a partial file.
type Cutter interface {
	CutClip(ctx context.Context, videoPath, outPath string, startSec, durSec float64) error
}

// Cache is an idempotent clip store keyed by (job, mode, quantized start,
// quantized duration). Presence of the file is the cache-hit signal; the
// contents are never validated or re-encoded. Concurrent requests for the
// same key collapse into a single cut.
type Cache struct {
	layout *artifacts.Layout
	cutter Cutter
	group  singleflight.Group
}

// NewCache creates a clip cache over the given layout and cutter.
func NewCache(layout *artifacts.Layout, cutter Cutter) *Cache {
	return &Cache{layout: layout, cutter: cutter}
}

// Key returns the quantized (start, duration) pair identifying a clip.
// Start is clamped to zero and both values are truncated to whole seconds,
// so nearby float requests share one cached file.
func Key(startSec, durSec float64) (int, int) {
	if startSec < 0 {
		startSec = 0
	}
	start := int(math.Floor(startSec))
	dur := int(math.Floor(durSec))
	if dur < 1 {
		dur = 1
	}
	return start, dur
}

// GetOrCreate returns the cached clip path for the key, cutting it first if
// absent. The cut uses the quantized values, so the file a key maps to is
// deterministic regardless of which request created it.
func (c *Cache) GetOrCreate(ctx context.Context, sourcePath, jobID, mode string, startSec, durSec float64) (string, error) {
	start, dur := Key(startSec, durSec)
	path := c.layout.ClipPath(jobID, mode, start, dur)

	if _, err := os.Stat(path); err == nil {
		logger.Debug("Clip cache hit", "job_id", jobID, "path", path)
		return path, nil
	}

	_, err, _ := c.group.Do(path, func() (any, error) {
		// Re-check inside the flight: a racing request may have just
		// published the file.
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		logger.Info("Cutting clip", "job_id", jobID, "mode", mode, "start", start, "duration", dur)
		return nil, c.cutter.CutClip(ctx, sourcePath, path, float64(start), float64(dur))
	})
	if err != nil {
		return "", fmt.Errorf("cut clip: %w", err)
	}

	return path, nil
}
