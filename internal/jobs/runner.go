package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gwlsn/scenefinder/internal/artifacts"
	"github.com/gwlsn/scenefinder/internal/asr"
	"github.com/gwlsn/scenefinder/internal/embed"
	"github.com/gwlsn/scenefinder/internal/index"
	"github.com/gwlsn/scenefinder/internal/logger"
	"github.com/gwlsn/scenefinder/internal/transcript"
)

// Progress checkpoints per stage. The exact values are presentation detail;
// the invariants are monotonicity and 100 only at the success stage.
const (
	progressExtractingAudio  = 15
	progressTranscribing     = 55
	progressSavingTranscript = 90
	progressBuildingScene    = 20
	progressReady            = 100
)

// MediaTools is the slice of the media collaborator the pipelines use.
// Implemented by media.FFmpeg.
type MediaTools interface {
	ExtractAudio(ctx context.Context, videoPath, audioOut string) error
	ExtractFrames(ctx context.Context, videoPath, outDir string, intervalSec, width int) ([]string, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Options are the scene-sampling parameters the runner bakes into every
// scene index it builds.
type Options struct {
	SampleIntervalSec int
	FrameWidth        int
	EmbedBatchSize    int
}

// Runner drives each job's pipeline to a terminal state. One background run
// is spawned per submitted job; a job id is accepted at most once, so no
// two pipeline instances ever run for the same job. Stage errors never
// escape the run goroutine: every failure becomes a persisted failure row.
type Runner struct {
	store       Store
	layout      *artifacts.Layout
	media       MediaTools
	transcriber asr.Transcriber
	embedder    embed.Embedder
	opts        Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	submitted map[string]struct{}
}

// NewRunner creates a pipeline runner.
func NewRunner(store Store, layout *artifacts.Layout, media MediaTools, transcriber asr.Transcriber, embedder embed.Embedder, opts Options) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:       store,
		layout:      layout,
		media:       media,
		transcriber: transcriber,
		embedder:    embedder,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		submitted:   make(map[string]struct{}),
	}
}

// Submit schedules the job's pipeline run in the background and returns
// immediately. Jobs are single-shot: a second submission for the same id
// fails with ErrAlreadySubmitted.
func (r *Runner) Submit(job *Job) error {
	r.mu.Lock()
	if _, dup := r.submitted[job.ID]; dup {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, job.ID)
	}
	r.submitted[job.ID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(job)
	return nil
}

// Stop cancels in-flight external calls and waits for all runs to settle.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until all submitted runs have finished. Used by tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(job *Job) {
	defer r.wg.Done()
	defer func() {
		// One bad job must never take down the process.
		if p := recover(); p != nil {
			r.fail(job, fmt.Sprintf("panic: %v", p))
		}
	}()

	logger.Info("Pipeline started", "job_id", job.ID, "mode", job.Mode)

	source, err := r.layout.FindSource(job.ID)
	if err != nil {
		r.fail(job, "source not found")
		return
	}

	switch job.Mode {
	case ModeScene:
		err = r.runScene(job, source)
	default:
		err = r.runAudio(job, source)
	}
	if err != nil {
		r.fail(job, err.Error())
		return
	}

	logger.Info("Pipeline complete", "job_id", job.ID, "mode", job.Mode)
}

// setStage persists the transition before the stage's work begins.
func (r *Runner) setStage(job *Job, stage Stage, progress int) error {
	if err := r.store.UpdateStage(job.ID, stage, progress, ""); err != nil {
		return fmt.Errorf("persist stage %s: %w", stage, err)
	}
	job.Stage = stage
	job.Progress = progress
	logger.Debug("Stage transition", "job_id", job.ID, "stage", stage, "progress", progress)
	return nil
}

// fail moves the job into its mode's failure stage with the given reason.
func (r *Runner) fail(job *Job, reason string) {
	logger.Warn("Pipeline failed", "job_id", job.ID, "mode", job.Mode, "reason", reason)
	if err := r.store.UpdateStage(job.ID, job.Mode.FailedStage(), 0, reason); err != nil {
		logger.Error("Failed to persist failure state", "job_id", job.ID, "error", err)
	}
	job.Stage = job.Mode.FailedStage()
	job.Progress = 0
	job.Error = reason
}

// runAudio: extract audio -> transcribe -> persist transcript.
func (r *Runner) runAudio(job *Job, source string) error {
	if err := r.setStage(job, StageExtractingAudio, progressExtractingAudio); err != nil {
		return err
	}
	audioPath := r.layout.AudioPath(job.ID)
	if err := r.media.ExtractAudio(r.ctx, source, audioPath); err != nil {
		return err
	}

	if err := r.setStage(job, StageTranscribing, progressTranscribing); err != nil {
		return err
	}
	res, err := r.transcriber.Transcribe(r.ctx, audioPath, job.Language, job.ModelSize)
	if err != nil {
		return err
	}

	if err := r.setStage(job, StageSavingTranscript, progressSavingTranscript); err != nil {
		return err
	}
	tr := &transcript.Transcript{
		Language: res.Language,
		Duration: res.Duration,
		Segments: transcript.Clean(res.Segments),
	}
	if err := transcript.Save(r.layout.TranscriptPath(job.ID), tr); err != nil {
		return err
	}

	return r.setStage(job, StageReadyAudio, progressReady)
}

// runScene: sample frames -> embed -> build and persist the vector index.
func (r *Runner) runScene(job *Job, source string) error {
	if err := r.setStage(job, StageBuildingSceneIndex, progressBuildingScene); err != nil {
		return err
	}

	// Probe failures are not fatal: the duration is informational metadata
	// and sampling works without it.
	duration, err := r.media.ProbeDuration(r.ctx, source)
	if err != nil {
		logger.Warn("Failed to probe source duration", "job_id", job.ID, "error", err)
		duration = 0
	}

	framesDir := r.layout.FramesDir(job.ID)
	frames, err := r.media.ExtractFrames(r.ctx, source, framesDir, r.opts.SampleIntervalSec, r.opts.FrameWidth)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(framesDir); err != nil {
			logger.Warn("Failed to clean frame scratch dir", "job_id", job.ID, "error", err)
		}
	}()

	vectors, err := r.embedder.EmbedImages(r.ctx, frames, r.opts.EmbedBatchSize)
	if err != nil {
		return err
	}

	// Zero sampled frames fails the job rather than persisting an index
	// that can never match anything.
	ix, err := index.Build(vectors)
	if err != nil {
		return err
	}
	if err := ix.Save(r.layout.SceneVectorsPath(job.ID)); err != nil {
		return err
	}

	timestamps := make([]float64, len(frames))
	for i := range timestamps {
		timestamps[i] = float64(i * r.opts.SampleIntervalSec)
	}
	meta := &index.Meta{
		SampleIntervalSec: r.opts.SampleIntervalSec,
		FrameWidth:        r.opts.FrameWidth,
		Count:             len(frames),
		Duration:          duration,
		Timestamps:        timestamps,
	}
	if err := index.SaveMeta(r.layout.SceneMetaPath(job.ID), meta); err != nil {
		return err
	}

	return r.setStage(job, StageReadyScene, progressReady)
}
