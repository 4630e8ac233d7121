package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VideoExts lists the upload extensions recognized as video.
// Lookup order matters: common containers are checked first.
var VideoExts = []string{".mp4", ".mkv", ".mov", ".webm", ".avi"}

// ErrSourceNotFound is returned when no uploaded source exists for a job.
var ErrSourceNotFound = errors.New("source not found")

// IsVideoExt reports whether ext (with leading dot, any case) is a
// recognized video extension.
func IsVideoExt(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range VideoExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Layout maps job ids to their on-disk artifacts under a single data root.
// No two jobs ever share a path: every artifact path embeds the job id.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at the given data directory.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the data root directory.
func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) uploadsDir() string    { return filepath.Join(l.root, "uploads") }
func (l *Layout) audioDir() string      { return filepath.Join(l.root, "audio") }
func (l *Layout) transcriptsDir() string { return filepath.Join(l.root, "transcripts") }
func (l *Layout) frameIndexDir() string { return filepath.Join(l.root, "index", "frames") }
func (l *Layout) framesTmpDir() string  { return filepath.Join(l.root, "frames_tmp") }
func (l *Layout) clipsDir() string      { return filepath.Join(l.root, "clips") }

// EnsureDirs creates every artifact directory. Creation is idempotent and
// safe to race: MkdirAll tolerates concurrent "already exists" outcomes.
func (l *Layout) EnsureDirs() error {
	dirs := []string{
		l.root,
		l.uploadsDir(),
		l.audioDir(),
		l.transcriptsDir(),
		l.frameIndexDir(),
		l.framesTmpDir(),
		l.clipsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// UploadPath returns the destination for an uploaded source file.
// ext must include the leading dot.
func (l *Layout) UploadPath(jobID, ext string) string {
	return filepath.Join(l.uploadsDir(), jobID+strings.ToLower(ext))
}

// FindSource locates the uploaded source for a job regardless of extension.
// Known extensions are probed first; odd extensions fall back to a prefix
// scan of the uploads directory. Returns ErrSourceNotFound if nothing matches.
func (l *Layout) FindSource(jobID string) (string, error) {
	for _, ext := range VideoExts {
		p := filepath.Join(l.uploadsDir(), jobID+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(l.uploadsDir(), jobID+".*"))
	if err != nil {
		return "", fmt.Errorf("scan uploads: %w", err)
	}
	for _, p := range matches {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrSourceNotFound, jobID)
}

// AudioPath returns the extracted mono waveform path for a job.
func (l *Layout) AudioPath(jobID string) string {
	return filepath.Join(l.audioDir(), jobID+".wav")
}

// TranscriptPath returns the persisted transcript document path for a job.
func (l *Layout) TranscriptPath(jobID string) string {
	return filepath.Join(l.transcriptsDir(), jobID+".json")
}

// SceneVectorsPath returns the vector index file for a job's scene index.
func (l *Layout) SceneVectorsPath(jobID string) string {
	return filepath.Join(l.frameIndexDir(), jobID+".bin")
}

// SceneMetaPath returns the scene index metadata document for a job.
func (l *Layout) SceneMetaPath(jobID string) string {
	return filepath.Join(l.frameIndexDir(), jobID+".json")
}

// FramesDir returns the scratch directory for a job's sampled frames.
func (l *Layout) FramesDir(jobID string) string {
	return filepath.Join(l.framesTmpDir(), jobID)
}

// ClipPath returns the cached clip path for a (job, mode, start, duration)
// key. start and duration are quantized to whole seconds by the caller.
func (l *Layout) ClipPath(jobID, mode string, startSec, durSec int) string {
	name := fmt.Sprintf("%s_%s_%d_%d.mp4", jobID, mode, startSec, durSec)
	return filepath.Join(l.clipsDir(), name)
}
