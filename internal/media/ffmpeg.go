// Package media wraps the external ffmpeg/ffprobe binaries used for audio
// extraction, frame sampling and clip cutting.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gwlsn/scenefinder/internal/logger"
)

// ToolError is a decode/encode tool failure carrying the tool's diagnostic
// output. It is never retried automatically; the message becomes the job's
// failure reason.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// FFmpeg runs media operations through the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// New creates an FFmpeg wrapper with the given binary paths.
func New(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// run executes ffmpeg with quiet output, capturing stderr for diagnostics.
func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("FFmpeg command", "args", strings.Join(full, " "))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "ffmpeg failed"
		}
		return &ToolError{Tool: "ffmpeg", Stderr: msg, Err: err}
	}
	return nil
}

// ExtractAudio decodes the video's audio track into a mono 16kHz WAV file,
// the input format the speech-to-text collaborator expects.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, audioOut string) error {
	if err := os.MkdirAll(filepath.Dir(audioOut), 0755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	return f.run(ctx,
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		audioOut,
	)
}

// ExtractFrames samples one frame every intervalSec seconds, resized to
// width (height follows aspect ratio), into numbered JPEGs under outDir.
// Returns the frame paths sorted in sample order, so frame i corresponds to
// timestamp i*intervalSec.
func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath, outDir string, intervalSec, width int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames directory: %w", err)
	}

	vf := fmt.Sprintf("fps=1/%d,scale=%d:-1", intervalSec, width)
	err := f.run(ctx,
		"-i", videoPath,
		"-vf", vf,
		"-q:v", "2",
		filepath.Join(outDir, "frame_%06d.jpg"),
	)
	if err != nil {
		return nil, err
	}

	frames, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(frames)
	return frames, nil
}

// CutClip extracts a sub-clip starting at max(0, startSec) lasting durSec
// seconds, using container stream copy (no re-encode). The clip is written
// to a temporary sibling and renamed into place so a reader never observes
// a partially written file.
func (f *FFmpeg) CutClip(ctx context.Context, videoPath, outPath string, startSec, durSec float64) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create clips directory: %w", err)
	}

	if startSec < 0 {
		startSec = 0
	}

	tmp := outPath + ".partial.mp4"
	defer os.Remove(tmp)

	err := f.run(ctx,
		"-ss", strconv.FormatFloat(startSec, 'f', -1, 64),
		"-i", videoPath,
		"-t", strconv.FormatFloat(durSec, 'f', -1, 64),
		"-c", "copy",
		"-f", "mp4",
		tmp,
	)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, outPath); err != nil {
		return fmt.Errorf("publish clip: %w", err)
	}
	return nil
}
